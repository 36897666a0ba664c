package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"reflect"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/go-playground/validator/v10"
	"golang.org/x/term"

	"github.com/gpa-hub/gpa-tracker/internal/application/command"
	"github.com/gpa-hub/gpa-tracker/internal/application/query"
	"github.com/gpa-hub/gpa-tracker/internal/domain/conformance"
	"github.com/gpa-hub/gpa-tracker/internal/domain/grading"
	"github.com/gpa-hub/gpa-tracker/internal/domain/shared"
	"github.com/gpa-hub/gpa-tracker/internal/domain/transcript"
	"github.com/gpa-hub/gpa-tracker/internal/infrastructure/external/gpaapi"
	"github.com/gpa-hub/gpa-tracker/internal/infrastructure/persistence/postgres"
	"github.com/gpa-hub/gpa-tracker/internal/interface/http/handlers"
)

var (
	readPasswordFunc = term.ReadPassword // подменяется в тестах

	errHelp  = errors.New("help provided")
	errDrift = errors.New("backend values drifted from the local computation")
	errNoDB  = errors.New("database is not configured, set DATABASE_URL")

	validate = newValidator()
)

// backend - всё, что gpactl использует из клиента бэкенда.
type backend interface {
	transcript.Source
	transcript.Writer
	transcript.Catalog
	command.DetailedTranscriptSource
	command.GradeTableSource
	Login(ctx context.Context, username, password string) (*gpaapi.TokenDTO, error)
}

type commandLine struct {
	out       io.Writer
	tokenFile string
	log       *slog.Logger

	connect     func(ctx context.Context) (backend, error)
	openReports func(ctx context.Context) (conformance.Repository, func(), error)
	openSchema  func(ctx context.Context) (schemaMigrator, func(), error)
}

// schemaMigrator - миграции схемы отчётов сверки.
type schemaMigrator interface {
	Migrate(ctx context.Context) error
	Rollback(ctx context.Context) (*postgres.Migration, error)
	Status(ctx context.Context) ([]postgres.Migration, error)
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  login -username USERNAME              - log in, the password is prompted")
	fmt.Fprintln(cli.out, "  hash-key                              - hash an API key for HTTP_API_KEY_HASHES")
	fmt.Fprintln(cli.out, "  convert -score SCORE | -letter LETTER - convert one grade")
	fmt.Fprintln(cli.out, "  summary [-semester ID] [-json]        - recompute the transcript GPA")
	fmt.Fprintln(cli.out, "  verify [-tolerance T]                 - compare backend GPA figures with the local computation")
	fmt.Fprintln(cli.out, "  add-semester -year YEAR -number N     - create a semester")
	fmt.Fprintln(cli.out, "  add-course -semester ID -code CODE    - create or update (-course ID) a course")
	fmt.Fprintln(cli.out, "  catalog [-query Q] [-add-to ID]       - search the catalog, optionally bulk-add results")
	fmt.Fprintln(cli.out, "  migrate [-status | -rollback]         - apply, list or revert report schema migrations")
}

func (cli *commandLine) run(ctx context.Context, args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	rest := args[2:]
	switch args[1] {
	case "login":
		return cli.login(ctx, rest)
	case "hash-key":
		return cli.hashKey(rest)
	case "convert":
		return cli.convert(ctx, rest)
	case "summary":
		return cli.summary(ctx, rest)
	case "verify":
		return cli.verify(ctx, rest)
	case "add-semester":
		return cli.addSemester(ctx, rest)
	case "add-course":
		return cli.addCourse(ctx, rest)
	case "catalog":
		return cli.catalog(ctx, rest)
	case "migrate":
		return cli.migrate(ctx, rest)
	default:
		cli.printUsage()
		return errHelp
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// AUTH
// ══════════════════════════════════════════════════════════════════════════════

func (cli *commandLine) login(ctx context.Context, args []string) error {
	fs := cli.flagSet("login")
	username := fs.String("username", "", "Backend username. The password will be prompted next.")
	if err := cli.parse(fs, args); err != nil {
		return err
	}
	if *username == "" {
		fs.Usage()
		return errHelp
	}

	pwd, err := cli.prompt("Enter password:")
	if err != nil {
		return err
	}
	if len(pwd) == 0 {
		fs.Usage()
		return errHelp
	}

	b, err := cli.connect(ctx)
	if err != nil {
		return err
	}
	token, err := b.Login(ctx, *username, pwd)
	if err != nil {
		return err
	}
	if err := writeToken(cli.tokenFile, token.AccessToken); err != nil {
		return fmt.Errorf("save token: %w", err)
	}

	fmt.Fprintf(cli.out, "logged in as %s, token saved to %s\n", *username, cli.tokenFile)
	return nil
}

func (cli *commandLine) hashKey(args []string) error {
	fs := cli.flagSet("hash-key")
	if err := cli.parse(fs, args); err != nil {
		return err
	}

	key, err := cli.prompt("Enter API key:")
	if err != nil {
		return err
	}
	if len(key) == 0 {
		fs.Usage()
		return errHelp
	}

	hash, err := handlers.HashAPIKey(key)
	if err != nil {
		return err
	}
	fmt.Fprintln(cli.out, hash)
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// GRADES
// ══════════════════════════════════════════════════════════════════════════════

func (cli *commandLine) convert(ctx context.Context, args []string) error {
	fs := cli.flagSet("convert")
	scoreRaw := fs.String("score", "", "Score on the 10-point scale. Wins over -letter.")
	letter := fs.String("letter", "", "Letter grade: A, B+, B, C+, C, D+, D or F.")
	if err := cli.parse(fs, args); err != nil {
		return err
	}

	score, err := parseScore(*scoreRaw)
	if err != nil {
		return err
	}
	q := query.ConvertGradeQuery{Score: score, Letter: strings.ToUpper(strings.TrimSpace(*letter))}
	if q.Score == nil && q.Letter == "" {
		fs.Usage()
		return errHelp
	}

	dto, err := query.NewConvertGradeHandler().Handle(ctx, q)
	if err != nil {
		return err
	}

	from := q.Letter
	if q.Score != nil {
		from = grading.FormatScore(*q.Score)
	}
	fmt.Fprintf(cli.out, "%s -> %s (%s)\n", from, dto.Letter, grading.FormatPoint(dto.GradePoint))
	return nil
}

func (cli *commandLine) summary(ctx context.Context, args []string) error {
	fs := cli.flagSet("summary")
	semester := fs.Int64("semester", 0, "Only show this semester. The cumulative GPA still covers all of them.")
	asJSON := fs.Bool("json", false, "Print JSON instead of a table.")
	if err := cli.parse(fs, args); err != nil {
		return err
	}

	b, err := cli.connect(ctx)
	if err != nil {
		return err
	}

	dto, err := query.NewComputeSummaryHandler(b, nil, nil, cli.log).Handle(ctx, query.ComputeSummaryQuery{
		SemesterID: shared.SemesterID(*semester),
	})
	if err != nil {
		return err
	}

	if *asJSON {
		enc := json.NewEncoder(cli.out)
		enc.SetIndent("", "  ")
		return enc.Encode(dto)
	}

	tw := tabwriter.NewWriter(cli.out, 0, 4, 2, ' ', 0)
	for _, s := range dto.Semesters {
		fmt.Fprintf(tw, "%s\t\t%d cr\tGPA %s\n", s.Name, s.TotalCredits, grading.FormatGPA(s.GPA))
		for _, c := range s.Courses {
			fmt.Fprintf(tw, "  %s\t%s\t%d cr\t%s (%s)\n", c.Code, c.Name, c.Credits, c.Letter, grading.FormatPoint(c.GradePoint))
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(cli.out, "\nCumulative GPA %s over %d credits - %s\n", dto.FormattedGPA, dto.TotalCredits, dto.Standing.Label)
	if grading.FormatGPA(dto.ReportedCumulativeGPA) != dto.FormattedGPA {
		fmt.Fprintf(cli.out, "backend reports %s\n", grading.FormatGPA(dto.ReportedCumulativeGPA))
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// CONFORMANCE
// ══════════════════════════════════════════════════════════════════════════════

func (cli *commandLine) verify(ctx context.Context, args []string) error {
	fs := cli.flagSet("verify")
	toleranceRaw := fs.String("tolerance", "", "Comparison tolerance (default 1e-6).")
	if err := cli.parse(fs, args); err != nil {
		return err
	}

	var tolerance *float64
	if *toleranceRaw != "" {
		v, err := strconv.ParseFloat(*toleranceRaw, 64)
		if err != nil {
			return fmt.Errorf("invalid -tolerance %q", *toleranceRaw)
		}
		tolerance = &v
	}

	b, err := cli.connect(ctx)
	if err != nil {
		return err
	}
	repo, closeRepo, err := cli.openReports(ctx)
	if err != nil {
		return err
	}
	defer closeRepo()

	h := command.NewVerifyConformanceHandler(b, b, repo, nil, nil, cli.log, command.DefaultVerifyConformanceConfig())
	report, err := h.Handle(ctx, command.VerifyConformanceCommand{Trigger: "cli", Tolerance: tolerance})
	if err != nil {
		return err
	}

	fmt.Fprintf(cli.out, "report %s: %s, %d checks over %d semesters and %d courses\n",
		report.ID, report.Status, len(report.Checks), report.Semesters, report.Courses)

	mismatches := report.Mismatches()
	if len(mismatches) == 0 {
		return nil
	}

	tw := tabwriter.NewWriter(cli.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SUBJECT\tFIELD\tEXPECTED\tACTUAL")
	for _, c := range mismatches {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", c.Subject, c.Field, checkValue(c.Expected, c.ExpectedText), checkValue(c.Actual, c.ActualText))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	return errDrift
}

func checkValue(v float64, text string) string {
	if text != "" {
		return text
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func (cli *commandLine) migrate(ctx context.Context, args []string) error {
	fs := cli.flagSet("migrate")
	status := fs.Bool("status", false, "List migrations without changing anything.")
	rollback := fs.Bool("rollback", false, "Revert the newest applied migration.")
	if err := cli.parse(fs, args); err != nil {
		return err
	}
	if *status && *rollback {
		fs.Usage()
		return errHelp
	}

	m, closeDB, err := cli.openSchema(ctx)
	if err != nil {
		return err
	}
	defer closeDB()

	switch {
	case *rollback:
		reverted, err := m.Rollback(ctx)
		if err != nil {
			return err
		}
		if reverted == nil {
			fmt.Fprintln(cli.out, "nothing to roll back")
			return nil
		}
		fmt.Fprintf(cli.out, "rolled back %03d_%s\n", reverted.Version, reverted.Name)
		return nil
	case !*status:
		if err := m.Migrate(ctx); err != nil {
			return err
		}
	}

	migrations, err := m.Status(ctx)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(cli.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "VERSION\tNAME\tAPPLIED")
	for _, mig := range migrations {
		applied := "pending"
		if mig.IsApplied {
			applied = mig.AppliedAt.UTC().Format("2006-01-02 15:04:05")
		}
		fmt.Fprintf(tw, "%03d\t%s\t%s\n", mig.Version, mig.Name, applied)
	}
	return tw.Flush()
}

// ══════════════════════════════════════════════════════════════════════════════
// TRANSCRIPT EDITING
// ══════════════════════════════════════════════════════════════════════════════

func (cli *commandLine) addSemester(ctx context.Context, args []string) error {
	fs := cli.flagSet("add-semester")
	year := fs.Int("year", 0, "First year of the academic year, e.g. 2024 for 2024-2025.")
	number := fs.Int("number", 0, "1 or 2 for regular terms, 3 for the summer term.")
	name := fs.String("name", "", "Semester name. Defaults to \"HK{n} - Năm học {year} - {year+1}\".")
	if err := cli.parse(fs, args); err != nil {
		return err
	}
	if *year == 0 || *number == 0 {
		fs.Usage()
		return errHelp
	}

	b, err := cli.connect(ctx)
	if err != nil {
		return err
	}
	s, err := command.NewAddSemesterHandler(b, nil).Handle(ctx, command.AddSemesterCommand{
		Year:   *year,
		Number: *number,
		Name:   *name,
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(cli.out, "created semester %d: %s\n", s.ID, s.Name)
	return nil
}

// courseInput - аргументы add-course. Имена в сообщениях об ошибках
// совпадают с флагами.
type courseInput struct {
	SemesterID int64    `flag:"semester" validate:"required_without=CourseID,min=0"`
	CourseID   int64    `flag:"course" validate:"min=0"`
	Code       string   `flag:"code" validate:"required,max=32"`
	Name       string   `flag:"name" validate:"max=200"`
	Credits    int      `flag:"credits" validate:"gte=0,lte=30"`
	Score      *float64 `flag:"score" validate:"omitempty,gte=0,lte=10"`
	Letter     string   `flag:"letter" validate:"omitempty,oneof=A B+ B C+ C D+ D F"`
}

func (cli *commandLine) addCourse(ctx context.Context, args []string) error {
	fs := cli.flagSet("add-course")
	semester := fs.Int64("semester", 0, "Semester to add the course to.")
	course := fs.Int64("course", 0, "Existing course to update instead.")
	code := fs.String("code", "", "Course code, e.g. IT001.")
	name := fs.String("name", "", "Course name.")
	credits := fs.Int("credits", 0, "Credits (default 1).")
	scoreRaw := fs.String("score", "", "Score on the 10-point scale. Wins over -letter.")
	letter := fs.String("letter", "", "Letter grade. The representative score of the letter is stored.")
	if err := cli.parse(fs, args); err != nil {
		return err
	}

	score, err := parseScore(*scoreRaw)
	if err != nil {
		return err
	}
	in := courseInput{
		SemesterID: *semester,
		CourseID:   *course,
		Code:       strings.TrimSpace(*code),
		Name:       *name,
		Credits:    *credits,
		Score:      score,
		Letter:     strings.ToUpper(strings.TrimSpace(*letter)),
	}
	if err := validate.Struct(in); err != nil {
		return inputError(err)
	}
	if in.Score == nil && in.Letter == "" {
		return errors.New("-score or -letter is required")
	}

	b, err := cli.connect(ctx)
	if err != nil {
		return err
	}
	res, err := command.NewRecordCourseHandler(b, nil).Handle(ctx, command.RecordCourseCommand{
		SemesterID: shared.SemesterID(in.SemesterID),
		CourseID:   shared.CourseID(in.CourseID),
		Code:       in.Code,
		Name:       in.Name,
		Credits:    in.Credits,
		Score:      in.Score,
		Letter:     in.Letter,
	})
	if err != nil {
		return err
	}

	verb := "updated"
	if res.Created {
		verb = "created"
	}
	fmt.Fprintf(cli.out, "%s course %d %s (%d cr): %s %s\n", verb, res.Course.ID, res.Course.Code,
		res.Course.Credits, res.Grade.Letter, grading.FormatPoint(res.Grade.GradePoint))
	if res.Drift {
		fmt.Fprintf(cli.out, "warning: backend stored grade point %s\n", grading.FormatPoint(res.Course.GradePoint))
	}
	return nil
}

func (cli *commandLine) catalog(ctx context.Context, args []string) error {
	fs := cli.flagSet("catalog")
	q := fs.String("query", "", "Filter by code or name.")
	addTo := fs.Int64("add-to", 0, "Add the matching courses to this semester.")
	idsRaw := fs.String("ids", "", "Comma separated catalog IDs to pick among the matches.")
	defaultScore := fs.Float64("default-score", 0, "Score the added courses start with.")
	if err := cli.parse(fs, args); err != nil {
		return err
	}

	ids, err := parseIDs(*idsRaw)
	if err != nil {
		return err
	}

	b, err := cli.connect(ctx)
	if err != nil {
		return err
	}

	if *addTo != 0 {
		res, err := command.NewBulkAddCatalogHandler(b, b, nil, cli.log).Handle(ctx, command.BulkAddCatalogCommand{
			SemesterID:   shared.SemesterID(*addTo),
			Query:        *q,
			CatalogIDs:   ids,
			DefaultScore: *defaultScore,
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(cli.out, "added %d of %d courses\n", res.Added, res.Requested)
		for _, c := range res.Skipped {
			fmt.Fprintf(cli.out, "skipped %s: already in the semester\n", c.Code)
		}
		return nil
	}

	courses, err := b.SearchCatalog(ctx, *q)
	if err != nil {
		return err
	}
	total, err := b.CountCatalog(ctx)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(cli.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCODE\tNAME\tCREDITS")
	for _, c := range courses {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\n", c.ID, c.Code, c.Name, c.Credits)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "%d of %d catalog courses\n", len(courses), total)
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

func (cli *commandLine) flagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(cli.out)
	return fs
}

func (cli *commandLine) parse(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return errHelp
		}
		return err
	}
	return nil
}

// prompt читает секрет без эха.
func (cli *commandLine) prompt(label string) (string, error) {
	fmt.Fprint(cli.out, label)
	b, err := readPasswordFunc(int(os.Stdin.Fd()))
	fmt.Fprintln(cli.out)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func parseScore(raw string) (*float64, error) {
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid -score %q", raw)
	}
	return &v, nil
}

func parseIDs(raw string) ([]int64, error) {
	if raw == "" {
		return nil, nil
	}
	var ids []int64
	for _, p := range strings.Split(raw, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		id, err := strconv.ParseInt(p, 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid catalog id %q", p)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		return fld.Tag.Get("flag")
	})
	return v
}

// inputError переводит ошибки валидатора в сообщение с именами флагов.
func inputError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, e := range verrs {
		switch e.Tag() {
		case "required", "required_without":
			msgs = append(msgs, "-"+e.Field()+" is required")
		case "oneof":
			msgs = append(msgs, "-"+e.Field()+" must be one of "+e.Param())
		default:
			msgs = append(msgs, fmt.Sprintf("-%s fails %s=%s", e.Field(), e.Tag(), e.Param()))
		}
	}
	return errors.New(strings.Join(msgs, "; "))
}
