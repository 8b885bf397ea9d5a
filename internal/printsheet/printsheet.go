package printsheet

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"farmfleet/internal/repository"
	"farmfleet/pkg/models"

	"github.com/jung-kurt/gofpdf"
	"github.com/skip2/go-qrcode"
	"go.uber.org/zap"
)

const qrPixels = 256

type BatchCodes interface {
	AllBatchCodes(ctx context.Context, dbc repository.DatabaseContext, batchID int64) (*models.ProductionBatch, []models.BatchQRCodeRecord, error)
}

// Renderer turns a batch listing into a printable PDF. It never changes
// state.
type Renderer struct {
	codes  BatchCodes
	layout PageLayout
	log    *zap.Logger
}

func NewRenderer(codes BatchCodes, layout PageLayout, log *zap.Logger) *Renderer {
	return &Renderer{codes: codes, layout: layout, log: log}
}

// RenderBatch writes the sheet for batchID to w and returns the batch it
// rendered.
func (r *Renderer) RenderBatch(ctx context.Context, dbc repository.DatabaseContext, batchID int64, w io.Writer) (*models.ProductionBatch, error) {
	batch, records, err := r.codes.AllBatchCodes(ctx, dbc, batchID)
	if err != nil {
		return nil, err
	}

	pages, err := Render(batch, records, r.layout, w)
	if err != nil {
		r.log.Error("Unable to render print sheet", zap.Int64("batch_id", batchID), zap.Error(err))
		return nil, err
	}

	r.log.Info("Rendered print sheet",
		zap.Int64("batch_id", batchID),
		zap.Int("codes", len(records)),
		zap.Int("pages", pages),
	)
	return batch, nil
}

// Render draws records onto layout and reports the page count.
func Render(batch *models.ProductionBatch, records []models.BatchQRCodeRecord, layout PageLayout, w io.Writer) (int, error) {
	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "mm",
		Size:           gofpdf.SizeType{Wd: layout.PageWidth, Ht: layout.PageHeight},
	})
	pdf.SetTitle(batch.BatchCode, true)
	pdf.SetMargins(layout.Margin, layout.Margin, layout.Margin)
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetFont("Helvetica", "", 9)

	if len(records) == 0 {
		pdf.AddPage()
		pdf.CellFormat(0, 10, fmt.Sprintf("%s has no codes", batch.BatchCode), "", 0, "L", false, 0, "")
	}

	imageOptions := gofpdf.ImageOptions{ImageType: "PNG"}
	for i, record := range records {
		slot := layout.Slot(i)
		if i%layout.PerPage() == 0 {
			pdf.AddPage()
		}

		png, err := qrcode.Encode(record.ShortCode, qrcode.Medium, qrPixels)
		if err != nil {
			return 0, fmt.Errorf("failed to encode qr image for %s: %w", record.ShortCode, err)
		}
		name := fmt.Sprintf("qr-%d", record.ID)
		pdf.RegisterImageOptionsReader(name, imageOptions, bytes.NewReader(png))
		pdf.ImageOptions(name, slot.X, slot.Y, slot.Size, slot.Size, false, imageOptions, 0, "")

		pdf.SetXY(slot.X, slot.CaptionY)
		pdf.CellFormat(slot.Size, layout.CaptionHeight/2, record.ShortCode, "", 2, "C", false, 0, "")
		pdf.CellFormat(slot.Size, layout.CaptionHeight/2, caption(record), "", 0, "C", false, 0, "")
	}

	if err := pdf.Output(w); err != nil {
		return 0, fmt.Errorf("failed to write pdf: %w", err)
	}
	return pdf.PageCount(), nil
}

func caption(record models.BatchQRCodeRecord) string {
	if record.PrintPosition == nil {
		return "#-"
	}
	return fmt.Sprintf("#%d", *record.PrintPosition)
}
