package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/khaind/macad-api/internal/models"
	appErrors "github.com/khaind/macad-api/pkg/errors"
	"github.com/khaind/macad-api/pkg/export"
)

// ExportFormat selects the rendered output type.
type ExportFormat string

const (
	ExportFormatCSV ExportFormat = "csv"
	ExportFormatPDF ExportFormat = "pdf"
)

type exportCourseReader interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
}

type exportEnrollmentReader interface {
	ListByCourse(ctx context.Context, courseID string) ([]models.EnrollmentDetail, error)
}

// ExportResult carries the rendered document.
type ExportResult struct {
	FileName    string
	ContentType string
	Data        []byte
}

// ExportService renders grade reports as CSV or PDF documents.
type ExportService struct {
	courses     exportCourseReader
	enrollments exportEnrollmentReader
	csv         *export.CSVExporter
	pdf         *export.PDFExporter
	logger      *zap.Logger
}

// NewExportService creates a new export service instance.
func NewExportService(courses exportCourseReader, enrollments exportEnrollmentReader, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{
		courses:     courses,
		enrollments: enrollments,
		csv:         export.NewCSVExporter(),
		pdf:         export.NewPDFExporter(),
		logger:      logger,
	}
}

// GradeReport renders the full grade sheet of one course.
func (s *ExportService) GradeReport(ctx context.Context, courseID string, format ExportFormat) (*ExportResult, error) {
	course, err := s.courses.FindByID(ctx, courseID)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
	}

	enrollments, err := s.enrollments.ListByCourse(ctx, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollments")
	}

	dataset := export.Dataset{
		Headers: []string{"Student", "Midterm", "Final", "Total", "Status", "Notes"},
		Widths:  []float64{3, 1, 1, 1, 1.5, 2.5},
	}
	for _, e := range enrollments {
		dataset.Rows = append(dataset.Rows, []string{
			e.StudentName,
			formatGrade(e.MidtermGrade),
			formatGrade(e.FinalGrade),
			formatGrade(e.TotalGrade),
			string(e.Status),
			e.Notes,
		})
	}

	title := fmt.Sprintf("Grade Report %s - %s", course.Code, course.SubjectName)
	base := fmt.Sprintf("grade-report-%s", strings.ToLower(course.Code))

	switch format {
	case ExportFormatCSV:
		data, err := s.csv.Render(dataset)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
		}
		return &ExportResult{FileName: base + ".csv", ContentType: "text/csv", Data: data}, nil
	case ExportFormatPDF:
		data, err := s.pdf.Render(dataset, title)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf")
		}
		return &ExportResult{FileName: base + ".pdf", ContentType: "application/pdf", Data: data}, nil
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}
}

func formatGrade(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', 2, 64)
}
