package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/vbauerster/mpb"
	"github.com/vbauerster/mpb/decor"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Fixture model labels, in the `app.model` form of dumped data.
const (
	FixtureGenre        = "catalog.genre"
	FixtureLanguage     = "catalog.language"
	FixtureAuthor       = "catalog.author"
	FixtureBook         = "catalog.book"
	FixtureBookInstance = "catalog.bookinstance"
	FixtureUser         = "auth.user"
)

var ErrUnknownFixtureModel = errors.New("unknown fixture model")

// FixtureRecord is one object of a fixture file.
type FixtureRecord struct {
	Model  string    `yaml:"model"`
	PK     yaml.Node `yaml:"pk"`
	Fields yaml.Node `yaml:"fields"`
}

// FixtureReport counts the outcome of a fixture load.
type FixtureReport struct {
	Loaded int
	Failed int
}

type genreFixture struct {
	Name string `yaml:"name"`
}

type languageFixture struct {
	Name string `yaml:"name"`
}

type authorFixture struct {
	FirstName   string  `yaml:"first_name"`
	LastName    string  `yaml:"last_name"`
	DateOfBirth *string `yaml:"date_of_birth"`
	DateOfDeath *string `yaml:"date_of_death"`
}

type bookFixture struct {
	Title    string  `yaml:"title"`
	Author   *int64  `yaml:"author"`
	Summary  string  `yaml:"summary"`
	ISBN     string  `yaml:"isbn"`
	Language *int64  `yaml:"language"`
	Genre    []int64 `yaml:"genre"`
}

type instanceFixture struct {
	Book     *int64  `yaml:"book"`
	Imprint  string  `yaml:"imprint"`
	DueBack  *string `yaml:"due_back"`
	Borrower *int64  `yaml:"borrower"`
	Status   string  `yaml:"status"`
}

type userFixture struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	IsStaff  bool   `yaml:"is_staff"`
	IsActive *bool  `yaml:"is_active"`
}

// FixtureLoader installs fixture objects into the catalog storage.
type FixtureLoader struct {
	logger  *zap.Logger
	storage CatalogStorage
	service CatalogServiceProvider
	out     io.Writer
}

func NewFixtureLoader(logger *zap.Logger, storage CatalogStorage, service CatalogServiceProvider, out io.Writer) *FixtureLoader {
	if out == nil {
		out = io.Discard
	}
	return &FixtureLoader{logger: logger, storage: storage, service: service, out: out}
}

// LoadFile reads and installs the fixture file at path.
func (fl *FixtureLoader) LoadFile(ctx context.Context, path string) (FixtureReport, error) {
	f, err := os.Open(path)
	if err != nil {
		return FixtureReport{}, fmt.Errorf("failed to open fixture file: %w", err)
	}
	defer f.Close()
	return fl.Load(ctx, f)
}

// Load installs every object read from r in file order. Objects are kept
// with their primary keys. A failing object is logged and skipped.
func (fl *FixtureLoader) Load(ctx context.Context, r io.Reader) (FixtureReport, error) {
	var report FixtureReport
	var records []FixtureRecord
	if err := yaml.NewDecoder(r).Decode(&records); err != nil && !errors.Is(err, io.EOF) {
		return report, fmt.Errorf("failed to decode fixture: %w", err)
	}
	if len(records) == 0 {
		return report, nil
	}

	p := mpb.New(mpb.WithOutput(fl.out), mpb.WithCancel(ctx.Done()))
	bar := p.AddBar(int64(len(records)),
		mpb.PrependDecorators(
			decor.StaticName("installing fixtures "),
			decor.CountersNoUnit("%d / %d", decor.WC{W: 9}),
		),
		mpb.AppendDecorators(decor.Percentage(decor.WC{W: 5})),
	)

	for i := range records {
		if ctx.Err() != nil {
			break
		}
		rec := &records[i]
		if err := fl.install(ctx, rec); err != nil {
			report.Failed++
			fl.logger.Error("failed to install fixture object",
				zap.Int("fixture.index", i),
				zap.String("fixture.model", rec.Model),
				zap.String("fixture.pk", rec.PK.Value),
				zap.Error(err),
			)
		} else {
			report.Loaded++
		}
		bar.Increment()
	}
	p.Wait()

	if err := ctx.Err(); err != nil {
		return report, err
	}
	if err := fl.storage.ResetSequences(ctx); err != nil {
		return report, fmt.Errorf("failed to reset sequences: %w", err)
	}
	fl.service.Invalidate(ctx)
	return report, nil
}

func (fl *FixtureLoader) install(ctx context.Context, rec *FixtureRecord) error {
	switch strings.ToLower(rec.Model) {
	case FixtureGenre:
		return fl.installGenre(ctx, rec)
	case FixtureLanguage:
		return fl.installLanguage(ctx, rec)
	case FixtureAuthor:
		return fl.installAuthor(ctx, rec)
	case FixtureBook:
		return fl.installBook(ctx, rec)
	case FixtureBookInstance:
		return fl.installInstance(ctx, rec)
	case FixtureUser:
		return fl.installUser(ctx, rec)
	}
	return fmt.Errorf("%w: %q", ErrUnknownFixtureModel, rec.Model)
}

// intPK decodes an optional integer primary key. Zero lets the database assign one.
func (rec *FixtureRecord) intPK() (int64, error) {
	if rec.PK.Kind != yaml.ScalarNode || rec.PK.Tag == "!!null" {
		return 0, nil
	}
	var id int64
	if err := rec.PK.Decode(&id); err != nil {
		return 0, fmt.Errorf("invalid pk: %w", err)
	}
	return id, nil
}

func (rec *FixtureRecord) decodeFields(v interface{}) error {
	if rec.Fields.Kind != yaml.MappingNode {
		return errors.New("fields must be a mapping")
	}
	return rec.Fields.Decode(v)
}

func (fl *FixtureLoader) installGenre(ctx context.Context, rec *FixtureRecord) error {
	id, err := rec.intPK()
	if err != nil {
		return err
	}
	var fields genreFixture
	if err = rec.decodeFields(&fields); err != nil {
		return err
	}
	if fields.Name == "" || len([]rune(fields.Name)) > MaxGenreNameLength {
		return fmt.Errorf("invalid genre name %q", fields.Name)
	}
	return fl.storage.AddGenre(ctx, &Genre{ID: id, Name: fields.Name})
}

func (fl *FixtureLoader) installLanguage(ctx context.Context, rec *FixtureRecord) error {
	id, err := rec.intPK()
	if err != nil {
		return err
	}
	var fields languageFixture
	if err = rec.decodeFields(&fields); err != nil {
		return err
	}
	if fields.Name == "" || len([]rune(fields.Name)) > MaxLanguageNameLength {
		return fmt.Errorf("invalid language name %q", fields.Name)
	}
	return fl.storage.AddLanguage(ctx, &Language{ID: id, Name: fields.Name})
}

func (fl *FixtureLoader) installAuthor(ctx context.Context, rec *FixtureRecord) error {
	id, err := rec.intPK()
	if err != nil {
		return err
	}
	var fields authorFixture
	if err = rec.decodeFields(&fields); err != nil {
		return err
	}
	author := Author{ID: id, FirstName: fields.FirstName, LastName: fields.LastName}
	if author.DateOfBirth, err = fixtureDate(fields.DateOfBirth); err != nil {
		return err
	}
	if author.DateOfDeath, err = fixtureDate(fields.DateOfDeath); err != nil {
		return err
	}
	return fl.storage.AddAuthor(ctx, &author)
}

func (fl *FixtureLoader) installBook(ctx context.Context, rec *FixtureRecord) error {
	id, err := rec.intPK()
	if err != nil {
		return err
	}
	var fields bookFixture
	if err = rec.decodeFields(&fields); err != nil {
		return err
	}
	book := Book{
		ID:         id,
		Title:      fields.Title,
		AuthorID:   fields.Author,
		Summary:    fields.Summary,
		ISBN:       fields.ISBN,
		LanguageID: fields.Language,
		GenreIDs:   fields.Genre,
	}
	return fl.storage.AddBook(ctx, &book)
}

func (fl *FixtureLoader) installInstance(ctx context.Context, rec *FixtureRecord) error {
	var pk string
	if rec.PK.Kind == yaml.ScalarNode && rec.PK.Tag != "!!null" {
		pk = rec.PK.Value
	}
	if pk != "" {
		if !IsUUID(pk) {
			return fmt.Errorf("invalid pk: %q is not a valid UUID", pk)
		}
		pk = NormalizeUUID(pk)
	}
	var fields instanceFixture
	if err := rec.decodeFields(&fields); err != nil {
		return err
	}
	status := LoanStatus(fields.Status)
	if !status.IsValid() {
		return fmt.Errorf("invalid status %q", fields.Status)
	}
	due, err := fixtureDate(fields.DueBack)
	if err != nil {
		return err
	}
	if pk == "" {
		pk = NewIDsHandler().Generate("")
	}
	instance := BookInstance{
		ID:         pk,
		BookID:     fields.Book,
		BorrowerID: fields.Borrower,
		Imprint:    fields.Imprint,
		DueBack:    due,
		Status:     status,
	}
	return fl.storage.AddBookInstance(ctx, &instance)
}

func (fl *FixtureLoader) installUser(ctx context.Context, rec *FixtureRecord) error {
	id, err := rec.intPK()
	if err != nil {
		return err
	}
	var fields userFixture
	if err = rec.decodeFields(&fields); err != nil {
		return err
	}
	if fields.Username == "" || len([]rune(fields.Username)) > MaxUsernameLength {
		return fmt.Errorf("invalid username %q", fields.Username)
	}
	hash := fields.Password
	if !strings.HasPrefix(hash, "$2") {
		if hash, err = HashPassword(fields.Password); err != nil {
			return err
		}
	}
	user := User{
		ID:           id,
		Username:     fields.Username,
		PasswordHash: hash,
		IsStaff:      fields.IsStaff,
		IsActive:     fields.IsActive == nil || *fields.IsActive,
	}
	return fl.storage.AddUser(ctx, &user)
}

func fixtureDate(v *string) (Date, error) {
	if v == nil {
		return Date{}, nil
	}
	return ParseDate(*v)
}
