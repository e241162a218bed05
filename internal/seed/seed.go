// Package seed loads a deterministic Salesforce-style demo dataset into the
// object store so the question pipeline has something to query out of the box.
// The same seed value always produces the same rows.
package seed

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/lakesage/lakesage/internal/storage"
)

type Config struct {
	Seed         int64
	Accounts     int
	FilesPerSet  int
	DeletedShare float64
}

func (c Config) withDefaults() Config {
	if c.Seed == 0 {
		c.Seed = 1
	}
	if c.Accounts <= 0 {
		c.Accounts = 50
	}
	if c.FilesPerSet <= 0 {
		c.FilesPerSet = 2
	}
	if c.DeletedShare <= 0 || c.DeletedShare >= 1 {
		c.DeletedShare = 0.05
	}
	return c
}

type Seeder struct {
	Store  storage.ObjectStore
	Logger *slog.Logger
	Config Config
}

type accountRow struct {
	ID            string  `parquet:"Id"`
	Name          string  `parquet:"Name"`
	Industry      string  `parquet:"Industry"`
	AnnualRevenue float64 `parquet:"AnnualRevenue"`
	IDSeq         string  `parquet:"grax__idseq"`
	Deleted       bool    `parquet:"grax__deleted"`
}

type contactRow struct {
	ID        string `parquet:"Id"`
	FirstName string `parquet:"FirstName"`
	LastName  string `parquet:"LastName"`
	Email     string `parquet:"Email"`
	AccountID string `parquet:"AccountId"`
	IDSeq     string `parquet:"grax__idseq"`
	Deleted   bool   `parquet:"grax__deleted"`
}

type opportunityRow struct {
	ID        string  `parquet:"Id"`
	Name      string  `parquet:"Name"`
	StageName string  `parquet:"StageName"`
	Amount    float64 `parquet:"Amount"`
	AccountID string  `parquet:"AccountId"`
	IDSeq     string  `parquet:"grax__idseq"`
	Deleted   bool    `parquet:"grax__deleted"`
}

// Run generates the demo tables and uploads one or more parquet files per
// table. Existing objects under the table prefixes are overwritten.
func (s *Seeder) Run(ctx context.Context) error {
	cfg := s.Config.withDefaults()
	gen := newGenerator(cfg)

	accounts := gen.accounts()
	contacts := gen.contacts(accounts)
	opportunities := gen.opportunities(accounts)

	if err := uploadTable(ctx, s.Store, "object_account", accounts, cfg.FilesPerSet); err != nil {
		return err
	}
	if err := uploadTable(ctx, s.Store, "object_contact", contacts, cfg.FilesPerSet); err != nil {
		return err
	}
	if err := uploadTable(ctx, s.Store, "object_opportunity", opportunities, cfg.FilesPerSet); err != nil {
		return err
	}

	if s.Logger != nil {
		s.Logger.Info("seeded demo dataset",
			slog.Int("accounts", len(accounts)),
			slog.Int("contacts", len(contacts)),
			slog.Int("opportunities", len(opportunities)),
		)
	}
	return nil
}

func uploadTable[T any](ctx context.Context, store storage.ObjectStore, tableName string, rows []T, files int) error {
	if files > len(rows) {
		files = 1
	}
	chunk := (len(rows) + files - 1) / files
	for i := 0; i < files; i++ {
		start := i * chunk
		end := start + chunk
		if end > len(rows) {
			end = len(rows)
		}
		if start >= end {
			break
		}
		body, err := encodeParquet(rows[start:end])
		if err != nil {
			return fmt.Errorf("encode %s part %d: %w", tableName, i, err)
		}
		key, err := storage.BuildTableFilePath(tableName, i)
		if err != nil {
			return err
		}
		if _, err := store.Put(ctx, key, bytes.NewReader(body), int64(len(body)), storage.PutOptions{ContentType: "application/octet-stream"}); err != nil {
			return fmt.Errorf("upload %s: %w", key, err)
		}
	}
	return nil
}

func encodeParquet[T any](rows []T) ([]byte, error) {
	var buf bytes.Buffer
	writer := parquet.NewGenericWriter[T](&buf)
	if _, err := writer.Write(rows); err != nil {
		return nil, err
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type generator struct {
	rnd *rand.Rand
	cfg Config
}

func newGenerator(cfg Config) *generator {
	return &generator{rnd: rand.New(rand.NewSource(cfg.Seed)), cfg: cfg}
}

var (
	industries = []string{"Technology", "Manufacturing", "Healthcare", "Finance", "Retail", "Energy"}
	firstNames = []string{"Ada", "Grace", "Alan", "Edsger", "Barbara", "Donald", "Radia", "Ken"}
	lastNames  = []string{"Lovelace", "Hopper", "Turing", "Dijkstra", "Liskov", "Knuth", "Perlman", "Thompson"}
	stages     = []string{"Prospecting", "Qualification", "Proposal", "Negotiation", "Closed Won", "Closed Lost"}
)

func (g *generator) accounts() []accountRow {
	base := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	rows := make([]accountRow, 0, g.cfg.Accounts+g.cfg.Accounts/5)
	for i := 0; i < g.cfg.Accounts; i++ {
		id := fmt.Sprintf("001%015d", i+1)
		row := accountRow{
			ID:            id,
			Name:          fmt.Sprintf("Account %03d", i+1),
			Industry:      pickOne(g.rnd, industries),
			AnnualRevenue: round2(50_000 + g.rnd.Float64()*9_950_000),
			IDSeq:         idseq(base, i, 0),
			Deleted:       g.rnd.Float64() < g.cfg.DeletedShare,
		}
		rows = append(rows, row)

		// Every fifth account gets a superseded earlier version so the
		// latest-version query pattern has something to deduplicate.
		if i%5 == 0 {
			stale := row
			stale.AnnualRevenue = round2(row.AnnualRevenue * 0.8)
			stale.IDSeq = idseq(base.Add(-24*time.Hour), i, 0)
			stale.Deleted = false
			rows = append(rows, stale)
		}
	}
	return rows
}

func (g *generator) contacts(accounts []accountRow) []contactRow {
	base := time.Date(2024, time.February, 1, 0, 0, 0, 0, time.UTC)
	rows := make([]contactRow, 0, len(accounts)*2)
	sequence := 0
	for _, account := range accounts {
		count := 1 + g.rnd.Intn(3)
		for i := 0; i < count; i++ {
			sequence++
			first := pickOne(g.rnd, firstNames)
			last := pickOne(g.rnd, lastNames)
			rows = append(rows, contactRow{
				ID:        fmt.Sprintf("003%015d", sequence),
				FirstName: first,
				LastName:  last,
				Email:     fmt.Sprintf("%s.%s.%d@example.com", first, last, sequence),
				AccountID: account.ID,
				IDSeq:     idseq(base, sequence, i),
				Deleted:   false,
			})
		}
	}
	return rows
}

func (g *generator) opportunities(accounts []accountRow) []opportunityRow {
	base := time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)
	rows := make([]opportunityRow, 0, len(accounts))
	sequence := 0
	for _, account := range accounts {
		count := g.rnd.Intn(3)
		for i := 0; i < count; i++ {
			sequence++
			rows = append(rows, opportunityRow{
				ID:        fmt.Sprintf("006%015d", sequence),
				Name:      fmt.Sprintf("%s - Deal %d", account.Name, i+1),
				StageName: pickOne(g.rnd, stages),
				Amount:    round2(5_000 + g.rnd.Float64()*495_000),
				AccountID: account.ID,
				IDSeq:     idseq(base, sequence, i),
				Deleted:   false,
			})
		}
	}
	return rows
}

// idseq mirrors the data lake's version ordering: a lexically sortable
// timestamp prefix followed by a discriminator.
func idseq(base time.Time, sequence, revision int) string {
	return fmt.Sprintf("%s-%06d-%02d", base.Format("20060102T150405"), sequence, revision)
}

func round2(value float64) float64 {
	return math.Round(value*100) / 100
}

func pickOne(r *rand.Rand, values []string) string {
	return values[r.Intn(len(values))]
}
