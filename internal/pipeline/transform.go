package pipeline

import (
	"context"

	"github.com/couchcryptid/groundwater-etl/internal/domain"
)

// RowTransformer implements Transformer: it decodes a raw upload row,
// computes its indices and assembles the test record.
type RowTransformer struct{}

// NewTransformer creates a RowTransformer.
func NewTransformer() *RowTransformer {
	return &RowTransformer{}
}

func (t *RowTransformer) Transform(_ context.Context, raw domain.RawEvent) (domain.SiteTest, error) {
	row, err := domain.ParseRawEvent(raw)
	if err != nil {
		return domain.SiteTest{}, err
	}
	return domain.BuildSiteTest(row)
}
