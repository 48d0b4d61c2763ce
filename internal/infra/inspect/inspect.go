// Package inspect reads document metadata from local input files.
package inspect

import (
	"fmt"
	"os"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	pdfmodel "github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"flashcard-generator/internal/domain"
	"flashcard-generator/internal/domain/model"
)

// Inspector counts pages of input documents. Images count as one page.
type Inspector struct {
	conf *pdfmodel.Configuration
}

func NewInspector() *Inspector {
	conf := pdfmodel.NewDefaultConfiguration()
	conf.ValidationMode = pdfmodel.ValidationRelaxed
	return &Inspector{conf: conf}
}

func (i *Inspector) Pages(path string) (int, error) {
	switch {
	case model.IsImage(path):
		if _, err := os.Stat(path); err != nil {
			return 0, err
		}
		return 1, nil
	case model.MIMEType(path) == "application/pdf":
		return i.pdfPages(path)
	default:
		return 0, fmt.Errorf("%w: %s", domain.ErrUnsupported, path)
	}
}

func (i *Inspector) pdfPages(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	ctx, err := api.ReadValidateAndOptimize(f, i.conf)
	if err != nil {
		return 0, fmt.Errorf("pdfcpu read: %w", err)
	}
	return ctx.PageCount, nil
}
