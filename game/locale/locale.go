// Package locale renders the short status labels shown next to stops and
// stages. Brazilian Portuguese is the default; English is also bundled.
package locale

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Message keys. They double as the English text.
const (
	keyStageDone      = "Done"
	keyStageAvailable = "Available"
	keyStageLocked    = "Locked"
	keyStageProgress  = "Stages done %d/%d"
	keyStopDone       = "Stop complete"
	keyStopLocked     = "Locked until the previous stop is complete"
	keyContentPending = "Content pending"
	keyGamesProgress  = "Games done: %d/%d"
	keyContentTitle   = "Content stage"
	keyStopName       = "Stop %d"
	keyCloseReady     = "Back to the track"
	keyClosePending   = "Finish the stages"
	keyFinishTour     = "Finish tour"
	keyActionView     = "View"
	keyActionPlay     = "Play"
	keyActionReview   = "Review"
)

var supported = []language.Tag{
	language.BrazilianPortuguese,
	language.English,
}

var matcher = language.NewMatcher(supported)

func init() {
	pt := language.BrazilianPortuguese
	for key, text := range map[string]string{
		keyStageDone:      "Concluido",
		keyStageAvailable: "Disponivel",
		keyStageLocked:    "Bloqueado",
		keyStageProgress:  "Etapas concluidas %d/%d",
		keyStopDone:       "Parada concluida",
		keyStopLocked:     "Bloqueado ate concluir a parada anterior",
		keyContentPending: "Conteudo pendente",
		keyGamesProgress:  "Games concluidos: %d/%d",
		keyContentTitle:   "Etapa de conteudo",
		keyStopName:       "Parada %d",
		keyCloseReady:     "Voltar para a trilha",
		keyClosePending:   "Conclua as etapas",
		keyFinishTour:     "Finalizar trilha",
		keyActionView:     "Visualizar",
		keyActionPlay:     "Jogar",
		keyActionReview:   "Rever",
	} {
		_ = message.SetString(pt, key, text)
	}
}

// Labels formats status text for one language.
type Labels struct {
	tag     language.Tag
	printer *message.Printer
}

// For returns labels for the closest supported match of lang. An empty or
// unparseable tag falls back to Brazilian Portuguese.
func For(lang string) *Labels {
	tag := supported[0]
	if lang != "" {
		if parsed, err := language.Parse(lang); err == nil {
			_, idx, conf := matcher.Match(parsed)
			if conf != language.No {
				tag = supported[idx]
			}
		}
	}
	return &Labels{tag: tag, printer: message.NewPrinter(tag)}
}

// Tag returns the resolved language.
func (l *Labels) Tag() language.Tag {
	return l.tag
}

// StageStatus labels one stage row.
func (l *Labels) StageStatus(done, unlocked bool) string {
	switch {
	case done:
		return l.printer.Sprintf(keyStageDone)
	case unlocked:
		return l.printer.Sprintf(keyStageAvailable)
	default:
		return l.printer.Sprintf(keyStageLocked)
	}
}

// StageAction is the button caption for a stage.
func (l *Labels) StageAction(content, done bool) string {
	if done {
		return l.printer.Sprintf(keyActionReview)
	}
	if content {
		return l.printer.Sprintf(keyActionView)
	}
	return l.printer.Sprintf(keyActionPlay)
}

// StageProgress is the header of an open stop.
func (l *Labels) StageProgress(done, total int, completed bool) string {
	if completed {
		return l.printer.Sprintf(keyStopDone)
	}
	return l.printer.Sprintf(keyStageProgress, done, total)
}

// StopStatus is the sidebar line for a stop.
func (l *Labels) StopStatus(unlocked, completed, contentDone bool, gamesDone, games int) string {
	switch {
	case !unlocked:
		return l.printer.Sprintf(keyStopLocked)
	case completed:
		return l.printer.Sprintf(keyStageDone)
	case contentDone:
		return l.printer.Sprintf(keyGamesProgress, gamesDone, games)
	default:
		return l.printer.Sprintf(keyContentPending)
	}
}

// CloseLabel is the caption of the close button of a stop view.
func (l *Labels) CloseLabel(completed bool) string {
	if completed {
		return l.printer.Sprintf(keyCloseReady)
	}
	return l.printer.Sprintf(keyClosePending)
}

// FinishTour is the caption shown on the last completed stop.
func (l *Labels) FinishTour() string {
	return l.printer.Sprintf(keyFinishTour)
}

// ContentTitle is the fallback title of a content stage.
func (l *Labels) ContentTitle() string {
	return l.printer.Sprintf(keyContentTitle)
}

// StopName is the fallback name of the stop at zero-based index i.
func (l *Labels) StopName(i int) string {
	return l.printer.Sprintf(keyStopName, i+1)
}
