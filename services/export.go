package services

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"clicksprout/internal/logger"
	"clicksprout/internal/store"
	"clicksprout/models"

	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"
)

// Export formats
const (
	ExportJSON  = "json"
	ExportExcel = "excel"
	ExportBoth  = "both"
)

const timestampLayout = "2006-01-02 15:04:05"

// ExportRequest represents the request parameters for a post export
type ExportRequest struct {
	Format     string    `form:"format"`
	Status     string    `form:"status"`
	Platform   string    `form:"platform"`
	CampaignID string    `form:"campaignId"`
	DateFrom   time.Time `form:"dateFrom" time_format:"2006-01-02"`
	DateTo     time.Time `form:"dateTo" time_format:"2006-01-02"`
}

// PostExportData is everything written to an export file
type PostExportData struct {
	ExportInfo ExportInfo                      `json:"export_info"`
	Posts      []models.PostRecord             `json:"posts"`
	Analytics  map[string]models.PostAnalytics `json:"analytics,omitempty"`
	Summary    ExportSummary                   `json:"summary"`
}

type ExportInfo struct {
	ExportDate   time.Time `json:"export_date"`
	TotalRecords int       `json:"total_records"`
	DateRange    string    `json:"date_range,omitempty"`
	Status       string    `json:"status,omitempty"`
	Platform     string    `json:"platform,omitempty"`
	CampaignID   string    `json:"campaign_id,omitempty"`
	Format       string    `json:"format"`
}

type ExportSummary struct {
	ByStatus   map[models.PostStatus]int `json:"by_status"`
	ByPlatform map[models.Platform]int   `json:"by_platform"`
	Retries    int                       `json:"retries"`
	Published  int                       `json:"published"`
}

// ExportService builds post exports
type ExportService struct {
	posts     *store.PostRepository
	analytics *store.AnalyticsRepository
}

// NewExportService creates a new export service
func NewExportService(posts *store.PostRepository, analytics *store.AnalyticsRepository) *ExportService {
	return &ExportService{posts: posts, analytics: analytics}
}

// Collect loads the posts matching req and summarizes them
func (es *ExportService) Collect(ctx context.Context, req *ExportRequest) (*PostExportData, error) {
	format := strings.ToLower(req.Format)
	if format == "" {
		format = ExportExcel
	}
	if format != ExportJSON && format != ExportExcel && format != ExportBoth {
		return nil, fmt.Errorf("unsupported format: %s", req.Format)
	}

	filter := store.PostFilter{
		Status:     models.PostStatus(req.Status),
		Platform:   models.Platform(strings.ToLower(req.Platform)),
		CampaignID: req.CampaignID,
	}
	posts, err := es.posts.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to load posts: %w", err)
	}
	posts = filterByDate(posts, req.DateFrom, req.DateTo)

	analytics := make(map[string]models.PostAnalytics)
	if es.analytics != nil {
		rows, err := es.analytics.List(ctx, filter.Platform)
		if err != nil {
			logger.Warn("Export continues without analytics", "error", err)
		}
		for _, row := range rows {
			analytics[row.PostID] = row
		}
	}

	return &PostExportData{
		ExportInfo: ExportInfo{
			ExportDate:   store.Now(),
			TotalRecords: len(posts),
			DateRange:    dateRange(req.DateFrom, req.DateTo),
			Status:       req.Status,
			Platform:     req.Platform,
			CampaignID:   req.CampaignID,
			Format:       format,
		},
		Posts:     posts,
		Analytics: analytics,
		Summary:   summarize(posts),
	}, nil
}

func filterByDate(posts []models.PostRecord, from, to time.Time) []models.PostRecord {
	if from.IsZero() && to.IsZero() {
		return posts
	}
	out := posts[:0]
	for _, p := range posts {
		if !from.IsZero() && p.CreatedAt.Before(from) {
			continue
		}
		if !to.IsZero() && !p.CreatedAt.Before(to.AddDate(0, 0, 1)) {
			continue
		}
		out = append(out, p)
	}
	return out
}

func dateRange(from, to time.Time) string {
	switch {
	case from.IsZero() && to.IsZero():
		return ""
	case from.IsZero():
		return "until " + to.Format("2006-01-02")
	case to.IsZero():
		return "from " + from.Format("2006-01-02")
	}
	return from.Format("2006-01-02") + " to " + to.Format("2006-01-02")
}

func summarize(posts []models.PostRecord) ExportSummary {
	s := ExportSummary{
		ByStatus:   make(map[models.PostStatus]int),
		ByPlatform: make(map[models.Platform]int),
	}
	for _, status := range models.AllPostStatuses {
		s.ByStatus[status] = 0
	}
	for _, p := range posts {
		s.ByStatus[p.Status]++
		s.ByPlatform[p.Platform]++
		s.Retries += p.RetryCount
		if p.Status == models.PostStatusPosted {
			s.Published++
		}
	}
	return s
}

var postHeaders = []string{
	"ID", "Platform", "Status", "Title", "Content", "Hashtags", "Link", "Campaign ID",
	"Scheduled Time", "Posted At", "Retries", "Max Retries", "Platform Post ID", "URL",
	"Last Error", "Impressions", "Engagement Rate", "Created At",
}

// WriteExcel writes a workbook with a Posts sheet and a Summary sheet
func (es *ExportService) WriteExcel(w io.Writer, data *PostExportData) error {
	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			logger.Warn("Error closing Excel file", "error", err)
		}
	}()

	sheetName := "Posts"
	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}

	for i, header := range postHeaders {
		if err := setCell(f, sheetName, i+1, 1, header); err != nil {
			return err
		}
	}

	for rowIdx, p := range data.Posts {
		row := rowIdx + 2
		stats := data.Analytics[p.ID]
		values := []any{
			p.ID,
			string(p.Platform),
			string(p.Status),
			p.Title,
			p.Content,
			strings.Join(p.Hashtags, " "),
			p.Link,
			p.CampaignID,
			formatTime(p.ScheduledTime),
			formatTime(p.PostedAt),
			p.RetryCount,
			p.MaxRetries,
			p.PlatformPostID,
			p.URL,
			p.LastError,
			stats.Impressions,
			stats.EngagementRate,
			p.CreatedAt.Format(timestampLayout),
		}
		for col, v := range values {
			if err := setCell(f, sheetName, col+1, row, v); err != nil {
				return err
			}
		}
	}

	last, _ := excelize.ColumnNumberToName(len(postHeaders))
	if err := f.SetColWidth(sheetName, "A", last, 18); err != nil {
		return fmt.Errorf("failed to size columns: %w", err)
	}

	summarySheetName := "Summary"
	if _, err := f.NewSheet(summarySheetName); err != nil {
		return fmt.Errorf("failed to create summary sheet: %w", err)
	}

	summaryData := [][]any{
		{"Export Information", ""},
		{"Export Date", data.ExportInfo.ExportDate.Format(timestampLayout)},
		{"Total Records", data.ExportInfo.TotalRecords},
		{"Date Range", data.ExportInfo.DateRange},
		{"Status Filter", data.ExportInfo.Status},
		{"Platform Filter", data.ExportInfo.Platform},
		{"", ""},
		{"Summary Statistics", ""},
		{"Published", data.Summary.Published},
		{"Total Retries", data.Summary.Retries},
		{"", ""},
		{"Status", "Posts"},
	}
	for _, status := range models.AllPostStatuses {
		summaryData = append(summaryData, []any{string(status), data.Summary.ByStatus[status]})
	}

	platforms := make([]string, 0, len(data.Summary.ByPlatform))
	for p := range data.Summary.ByPlatform {
		platforms = append(platforms, string(p))
	}
	sort.Strings(platforms)
	if len(platforms) > 0 {
		summaryData = append(summaryData, []any{"", ""}, []any{"Platform", "Posts"})
		for _, p := range platforms {
			summaryData = append(summaryData, []any{p, data.Summary.ByPlatform[models.Platform(p)]})
		}
	}

	for i, row := range summaryData {
		for j, cell := range row {
			if err := setCell(f, summarySheetName, j+1, i+1, cell); err != nil {
				return err
			}
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write Excel file: %w", err)
	}
	return nil
}

// WriteZip writes the JSON and the workbook into one archive
func (es *ExportService) WriteZip(w io.Writer, data *PostExportData) error {
	zipWriter := zip.NewWriter(w)

	jsonFile, err := zipWriter.Create("posts_export.json")
	if err != nil {
		return fmt.Errorf("failed to add JSON to archive: %w", err)
	}
	enc := json.NewEncoder(jsonFile)
	enc.SetIndent("", "  ")
	if err := enc.Encode(data); err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	excelFile, err := zipWriter.Create("posts_export.xlsx")
	if err != nil {
		return fmt.Errorf("failed to add workbook to archive: %w", err)
	}
	if err := es.WriteExcel(excelFile, data); err != nil {
		return err
	}
	return zipWriter.Close()
}

// StreamExport streams export data directly to HTTP response
func (es *ExportService) StreamExport(c *gin.Context, data *PostExportData) error {
	var (
		buf         bytes.Buffer
		contentType string
		filename    string
	)
	stamp := data.ExportInfo.ExportDate.Format("20060102_150405")

	switch data.ExportInfo.Format {
	case ExportJSON:
		raw, err := json.MarshalIndent(data, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal JSON: %w", err)
		}
		buf.Write(raw)
		contentType = "application/json"
		filename = "posts_export_" + stamp + ".json"
	case ExportExcel:
		if err := es.WriteExcel(&buf, data); err != nil {
			return err
		}
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
		filename = "posts_export_" + stamp + ".xlsx"
	case ExportBoth:
		if err := es.WriteZip(&buf, data); err != nil {
			return err
		}
		contentType = "application/zip"
		filename = "posts_export_" + stamp + ".zip"
	default:
		return fmt.Errorf("unsupported format: %s", data.ExportInfo.Format)
	}

	c.Header("Content-Disposition", "attachment; filename="+filename)
	c.Header("Content-Length", strconv.Itoa(buf.Len()))
	c.Data(http.StatusOK, contentType, buf.Bytes())
	return nil
}

func setCell(f *excelize.File, sheet string, col, row int, value any) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return err
	}
	return f.SetCellValue(sheet, cell, value)
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(timestampLayout)
}
