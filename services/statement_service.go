package services

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"log"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/google/uuid"

	config "github.com/mutisya87/trainer_marketplace/configs"
	"github.com/mutisya87/trainer_marketplace/database"
	"github.com/mutisya87/trainer_marketplace/models"
)

const statementTemplate = `<!DOCTYPE html>
<html>
<head><style>
body { font-family: Helvetica, Arial, sans-serif; margin: 40px; color: #222; }
h1 { font-size: 22px; } table { width: 100%; border-collapse: collapse; margin-top: 24px; }
th, td { text-align: left; padding: 8px 12px; border-bottom: 1px solid #ddd; }
.total { font-weight: bold; }
</style></head>
<body>
<h1>Earnings Statement</h1>
<p>{{.TrainerName}} &mdash; {{.PeriodLabel}}</p>
<table>
<tr><th>Booking</th><th>Released</th><th>Amount</th></tr>
{{range .Lines}}<tr><td>{{.BookingID}}</td><td>{{.ReleasedOn}}</td><td>{{.Amount}}</td></tr>{{end}}
<tr class="total"><td colspan="2">Total ({{.SessionCount}} sessions)</td><td>{{.Total}}</td></tr>
</table>
</body>
</html>`

type statementLine struct {
	BookingID  string
	ReleasedOn string
	Amount     string
}

// GenerateMonthlyStatements renders and stores an earnings statement for
// every trainer that had funds released during the given month. Already
// generated periods are skipped, so re-running is harmless.
func GenerateMonthlyStatements(periodStart time.Time) {
	periodStart = time.Date(periodStart.Year(), periodStart.Month(), 1, 0, 0, 0, 0, time.UTC)
	periodEnd := periodStart.AddDate(0, 1, 0)

	var trainerIDs []uuid.UUID
	err := database.DB.Model(&models.EscrowRecord{}).
		Where("status = ? AND released_at >= ? AND released_at < ?", models.EscrowReleased, periodStart, periodEnd).
		Distinct().
		Pluck("trainer_id", &trainerIDs).Error
	if err != nil {
		log.Printf("🔥 Statement run: failed to find trainers with releases: %v", err)
		return
	}

	for _, trainerID := range trainerIDs {
		if err := generateStatementForTrainer(trainerID, periodStart, periodEnd); err != nil {
			log.Printf("🔥 Statement generation failed for trainer %s: %v", trainerID, err)
		}
	}
}

func generateStatementForTrainer(trainerID uuid.UUID, periodStart, periodEnd time.Time) error {
	var existing models.Statement
	if err := database.DB.Where("trainer_id = ? AND period_start = ?", trainerID, periodStart).First(&existing).Error; err == nil {
		return nil
	}

	var trainer models.User
	if err := database.DB.First(&trainer, "id = ?", trainerID).Error; err != nil {
		return err
	}

	var records []models.EscrowRecord
	err := database.DB.
		Where("trainer_id = ? AND status = ? AND released_at >= ? AND released_at < ?",
			trainerID, models.EscrowReleased, periodStart, periodEnd).
		Order("released_at asc").
		Find(&records).Error
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}

	var total int64
	lines := make([]statementLine, 0, len(records))
	for _, rec := range records {
		total += rec.TrainerAmount
		lines = append(lines, statementLine{
			BookingID:  rec.BookingID.String(),
			ReleasedOn: rec.ReleasedAt.Format("Jan 2, 2006"),
			Amount:     fmt.Sprintf("$%.2f", float64(rec.TrainerAmount)/100),
		})
	}

	htmlData, err := renderStatementHTML(trainer.FullName, periodStart, lines, len(records), total)
	if err != nil {
		return err
	}

	pdfBytes, err := generatePDFFromHTML(htmlData)
	if err != nil {
		return err
	}

	uploadURL, err := uploadStatementPDF(pdfBytes, trainerID.String())
	if err != nil {
		return err
	}

	statement := models.Statement{
		TrainerID:    trainerID,
		PeriodStart:  periodStart,
		PeriodEnd:    periodEnd,
		SessionCount: len(records),
		TotalCents:   total,
		Currency:     records[0].Currency,
		StatementURL: uploadURL,
	}
	if err := database.DB.Create(&statement).Error; err != nil {
		return err
	}

	log.Printf("✅ Generated earnings statement for trainer %s (%s).", trainerID, periodStart.Format("January 2006"))
	return nil
}

func renderStatementHTML(trainerName string, periodStart time.Time, lines []statementLine, count int, totalCents int64) (string, error) {
	tmpl, err := template.New("statement").Parse(statementTemplate)
	if err != nil {
		return "", err
	}

	data := struct {
		TrainerName  string
		PeriodLabel  string
		Lines        []statementLine
		SessionCount int
		Total        string
	}{
		TrainerName:  trainerName,
		PeriodLabel:  periodStart.Format("January 2006"),
		Lines:        lines,
		SessionCount: count,
		Total:        fmt.Sprintf("$%.2f", float64(totalCents)/100),
	}

	var rendered bytes.Buffer
	if err := tmpl.Execute(&rendered, data); err != nil {
		return "", err
	}
	return rendered.String(), nil
}

func generatePDFFromHTML(htmlContent string) ([]byte, error) {
	ctx, cancel := chromedp.NewContext(context.Background())
	defer cancel()

	var pdfBuffer []byte
	err := chromedp.Run(ctx,
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			frameTree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(frameTree.Frame.ID, htmlContent).Do(ctx)
		}),
		chromedp.ActionFunc(func(ctx context.Context) error {
			pdf, _, err := page.PrintToPDF().WithPrintBackground(true).Do(ctx)
			if err != nil {
				return err
			}
			pdfBuffer = pdf
			return nil
		}),
	)
	if err != nil {
		return nil, err
	}
	return pdfBuffer, nil
}

func uploadStatementPDF(fileBytes []byte, trainerID string) (string, error) {
	cld, err := cloudinary.NewFromURL(config.Config("CLOUDINARY_URL"))
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	uploadParams := uploader.UploadParams{
		PublicID:     fmt.Sprintf("statements/%s_%s", trainerID, uuid.New().String()),
		Folder:       "trainer_marketplace_statements",
		ResourceType: "raw",
	}

	uploadResult, err := cld.Upload.Upload(ctx, bytes.NewReader(fileBytes), uploadParams)
	if err != nil {
		return "", err
	}

	return uploadResult.SecureURL, nil
}
