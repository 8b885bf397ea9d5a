package googlesheets

import (
	"context"
	"fmt"

	"farmfleet/internal/core/config"
	"farmfleet/internal/repository"
	"farmfleet/pkg/models"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

type BatchCodes interface {
	AllBatchCodes(ctx context.Context, dbc repository.DatabaseContext, batchID int64) (*models.ProductionBatch, []models.BatchQRCodeRecord, error)
}

// Appender appends rows below the table found at rng.
type Appender interface {
	Append(ctx context.Context, spreadsheetID, rng string, rows [][]interface{}) (string, error)
}

type sheetsAppender struct {
	service *sheets.Service
}

func (a *sheetsAppender) Append(ctx context.Context, spreadsheetID, rng string, rows [][]interface{}) (string, error) {
	resp, err := a.service.Spreadsheets.Values.
		Append(spreadsheetID, rng, &sheets.ValueRange{Values: rows}).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("unable to append to spreadsheet: %w", err)
	}
	if resp.Updates == nil {
		return "", nil
	}
	return resp.Updates.UpdatedRange, nil
}

// NewSheetsAppender authenticates with the service account credentials.
func NewSheetsAppender(ctx context.Context, credentialsJSON string) (Appender, error) {
	credentials, err := google.CredentialsFromJSON(ctx, []byte(credentialsJSON), sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("unable to load Google credentials: %w", err)
	}

	client := oauth2.NewClient(ctx, credentials.TokenSource)
	service, err := sheets.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("unable to create Google Sheets client: %w", err)
	}
	return &sheetsAppender{service: service}, nil
}

// ManifestExporter writes a batch manifest to the shared spreadsheet that
// suppliers and the print shop work from.
type ManifestExporter struct {
	codes         BatchCodes
	appender      Appender
	spreadsheetID string
	rng           string
	log           *zap.Logger
}

func NewManifestExporter(codes BatchCodes, appender Appender, cfg config.GoogleSheetsConfig, log *zap.Logger) *ManifestExporter {
	return &ManifestExporter{
		codes:         codes,
		appender:      appender,
		spreadsheetID: cfg.ManifestSpreadsheetID,
		rng:           cfg.ManifestRange,
		log:           log,
	}
}

func (e *ManifestExporter) ExportBatch(ctx context.Context, dbc repository.DatabaseContext, batchID int64) (*ManifestExport, error) {
	batch, records, err := e.codes.AllBatchCodes(ctx, dbc, batchID)
	if err != nil {
		return nil, err
	}

	rows := ManifestRows(batch, records)
	updated, err := e.appender.Append(ctx, e.spreadsheetID, e.rng, rows)
	if err != nil {
		e.log.Error("Unable to export batch manifest",
			zap.Int64("batch_id", batchID),
			zap.String("spreadsheet_id", e.spreadsheetID),
			zap.Error(err),
		)
		return nil, err
	}

	e.log.Info("Exported batch manifest",
		zap.Int64("batch_id", batchID),
		zap.String("batch_code", batch.BatchCode),
		zap.Int("rows", len(rows)),
		zap.String("range", updated),
	)
	return &ManifestExport{
		BatchID:       batch.ID,
		BatchCode:     batch.BatchCode,
		SpreadsheetID: e.spreadsheetID,
		Rows:          len(rows),
		UpdatedRange:  updated,
	}, nil
}
