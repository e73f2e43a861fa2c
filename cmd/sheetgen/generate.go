package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/SAP-F-2025/answer-sheet-service/internal/models"
	"github.com/SAP-F-2025/answer-sheet-service/internal/omr"
	"github.com/SAP-F-2025/answer-sheet-service/internal/roster"
	"github.com/SAP-F-2025/answer-sheet-service/internal/sheet"
	"github.com/SAP-F-2025/answer-sheet-service/internal/sheetcode"
)

type generateOptions struct {
	rosterPath string
	output     string
	day        int
	limit      int
	simulate   bool
	seed       uint64
	logoPath   string
	title      string
	verbose    bool
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "sheetgen",
		Short:         "Offline answer sheet generator",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newGenerateCmd())
	return root
}

func newGenerateCmd() *cobra.Command {
	opts := generateOptions{}

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Render one answer sheet per roster row",
		Long: `Reads a CSV or XLSX roster, mints a sheet code per student and writes
a PDF with one page per student plus <output>_codes.csv mapping students to
codes. Codes are unique within the run only; nothing is persisted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(cmd.Context(), opts, cmd.OutOrStdout())
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.rosterPath, "csv", "", "roster file (.csv or .xlsx)")
	flags.StringVarP(&opts.output, "output", "o", "cartoes_resposta.pdf", "output PDF path")
	flags.IntVar(&opts.day, "day", 1, "exam day printed in the header")
	flags.IntVar(&opts.limit, "limit", 0, "render only the first N students (0 = all)")
	flags.BoolVar(&opts.simulate, "simulate", false, "pre-fill random answers for scanner calibration")
	flags.Uint64Var(&opts.seed, "seed", 0, "seed for --simulate (0 = random)")
	flags.StringVar(&opts.logoPath, "logo", "", "PNG or JPEG logo for the header")
	flags.StringVar(&opts.title, "title", sheet.DefaultTitle, "sheet title")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "debug logging")
	_ = cmd.MarkFlagRequired("csv")

	return cmd
}

func runGenerate(ctx context.Context, opts generateOptions, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.day < 1 {
		return fmt.Errorf("--day must be at least 1, got %d", opts.day)
	}
	if opts.limit < 0 {
		return fmt.Errorf("--limit must not be negative, got %d", opts.limit)
	}

	level := slog.LevelWarn
	if opts.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	data, err := os.ReadFile(opts.rosterPath)
	if err != nil {
		return fmt.Errorf("read roster: %w", err)
	}
	raw, err := roster.Parse(opts.rosterPath, data)
	if err != nil {
		return err
	}
	rows, err := roster.Normalize(raw)
	if err != nil {
		return err
	}
	if opts.limit > 0 && opts.limit < len(rows) {
		rows = rows[:opts.limit]
	}

	// no store: uniqueness holds within this run only
	codes, err := sheetcode.NewGenerator(nil, sheetcode.WithLogger(logger)).GenerateUnique(ctx, len(rows))
	if err != nil {
		return err
	}

	students := make([]*models.AnswerSheetStudent, len(rows))
	for i, row := range rows {
		students[i] = &models.AnswerSheetStudent{
			StudentName:    row.StudentName,
			EnrollmentCode: row.EnrollmentCode,
			ClassName:      row.ClassName,
			SheetCode:      codes[i],
		}
	}

	assets, err := sheet.LoadAssets(opts.logoPath)
	if err != nil {
		return err
	}
	composerOpts := []sheet.Option{sheet.WithTitle(opts.title)}
	if opts.simulate {
		fillRandomAnswers(students, omr.Current, opts.seed)
		composerOpts = append(composerOpts, sheet.WithFilledAnswers())
	}
	composer := sheet.NewComposer(assets, composerOpts...)

	doc, err := composer.ComposeBatch(students, sheet.DayLabel(opts.day))
	if err != nil {
		return err
	}
	pdf, err := sheet.NewRenderer().Render(doc)
	if err != nil {
		return err
	}
	if err := os.WriteFile(opts.output, pdf, 0o644); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}

	codesPath := codesPathFor(opts.output)
	if err := writeCodeMap(codesPath, students); err != nil {
		return err
	}

	fmt.Fprintf(out, "%d answer sheets written to %s\n", len(students), opts.output)
	fmt.Fprintf(out, "sheet codes written to %s\n", codesPath)
	return nil
}

// codesPathFor maps out.pdf to out_codes.csv
func codesPathFor(output string) string {
	base := strings.TrimSuffix(output, filepath.Ext(output))
	return base + "_codes.csv"
}

func writeCodeMap(path string, students []*models.AnswerSheetStudent) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create code map: %w", err)
	}
	if err := roster.WriteCodeMapCSV(f, students); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// fillRandomAnswers marks one option per question, leaving about one in ten
// blank.
func fillRandomAnswers(students []*models.AnswerSheetStudent, t omr.Template, seed uint64) {
	if seed == 0 {
		seed = rand.Uint64()
	}
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))

	for _, s := range students {
		answers := make([]string, t.QuestionCount())
		for q := range answers {
			if rng.IntN(10) == 0 {
				continue
			}
			answers[q] = t.Options[rng.IntN(len(t.Options))]
		}
		s.Answers = answers
	}
}
