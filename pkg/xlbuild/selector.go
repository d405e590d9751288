package xlbuild

import (
	"fmt"

	"github.com/ukaji3/xlbuild-go/pkg/xlbuild/models"
)

// Strategy is the construction strategy chosen for a document.
type Strategy string

const (
	StrategyInline Strategy = "inline"
	StrategyWorker Strategy = "worker"
)

// SelectStrategy returns StrategyWorker when any sheet spans more than threshold
// cells (header width times row count), StrategyInline otherwise.
func SelectStrategy(doc models.Document, threshold int) Strategy {
	for _, sheet := range doc.Sheets {
		if sheet.Cells() > threshold {
			return StrategyWorker
		}
	}
	return StrategyInline
}

func (o Options) strategy(doc models.Document) (Strategy, error) {
	switch o.Mode {
	case ModeAuto, "":
		return SelectStrategy(doc, o.CellThreshold()), nil
	case ModeInline:
		return StrategyInline, nil
	case ModeWorker:
		return StrategyWorker, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidMode, o.Mode)
	}
}
