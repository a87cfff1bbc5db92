package nesting

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	// SQL Server driver
	_ "github.com/microsoft/go-mssqldb"
	"github.com/rs/zerolog"
)

// DefaultProgramNamesQuery lists programs posted in a window. @p1 and @p2 are
// the window bounds.
const DefaultProgramNamesQuery = `
SELECT DISTINCT p.ProgramName AS ProgramName, p.PostDateTime AS PostDateTime
FROM dbo.Program p
WHERE p.PostDateTime >= @p1 AND p.PostDateTime <= @p2
ORDER BY p.PostDateTime
`

// DefaultRecordsQuery returns the flat (program, part) rows of a set of
// programs. The %s verb receives the @pN placeholder list.
const DefaultRecordsQuery = `
SELECT
	p.ProgramName, p.RepeatID AS RepeatIDProgram, p.UsedArea, p.ScrapFraction, p.MachineName,
	p.CuttingTime AS CuttingTimeProgram, p.PostDateTime, p.Material, p.Thickness,
	p.SheetLength, p.SheetWidth, p.ArchivePacketID, p.TimeLineID, p.Comment,
	p.PostedByUserID, p.PierceQty AS PierceQtyProgram,
	u.UserName, u.FirstName AS UserFirstName, u.LastName AS UserLastName,
	u.EMail AS UserEMail, u.LastLoginDate,
	wo.WONumber, wo.CustomerName, wo.WODate, wo.OrderDate, wo.WOData1, wo.WOData2, wo.DateCreated,
	pt.PartName, pt.QtyInProcess, pt.PartLength, pt.PartWidth, pt.TrueArea, pt.RectArea,
	pt.TrueWeight, pt.RectWeight, pt.CuttingTime AS CuttingTimePart, pt.CuttingLength,
	pt.PierceQty AS PierceQtyPart, pt.NestedArea, pt.TotalCuttingTime, pt.MasterPartQty,
	pt.WOState, pt.DueDate, pt.RevisionNumber, pt.PK_PIP, pt.SourceFileName
FROM dbo.Program p
JOIN dbo.PIP pt ON pt.ProgramName = p.ProgramName
JOIN dbo.WorkOrder wo ON wo.WONumber = pt.WONumber
LEFT JOIN dbo.Users u ON u.UserID = p.PostedByUserID
WHERE p.ProgramName IN (%s)
ORDER BY p.ProgramName, p.RepeatID, pt.PartName
`

// SQLConfig configures the SQL Server source.
type SQLConfig struct {
	DSN               string
	ProgramNamesQuery string
	RecordsQuery      string
	MaxOpenConns      int
	ConnMaxLifetime   time.Duration
}

// SQLSource reads the nesting database over the sqlserver driver.
type SQLSource struct {
	db       *sql.DB
	cfg      SQLConfig
	contract *Contract
	logger   zerolog.Logger
}

// NewSQLSource opens a connection pool to the nesting database. The pool is
// lazy; the first query dials.
func NewSQLSource(cfg SQLConfig, contract *Contract, logger zerolog.Logger) (*SQLSource, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("nesting DSN is required")
	}
	if cfg.ProgramNamesQuery == "" {
		cfg.ProgramNamesQuery = DefaultProgramNamesQuery
	}
	if cfg.RecordsQuery == "" {
		cfg.RecordsQuery = DefaultRecordsQuery
	}
	if !strings.Contains(cfg.RecordsQuery, "%s") {
		return nil, fmt.Errorf("records query must contain a %%s placeholder list")
	}
	if cfg.MaxOpenConns == 0 {
		cfg.MaxOpenConns = 4
	}
	if cfg.ConnMaxLifetime == 0 {
		cfg.ConnMaxLifetime = 10 * time.Minute
	}

	db, err := sql.Open("sqlserver", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open nesting database: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	return &SQLSource{
		db:       db,
		cfg:      cfg,
		contract: contract,
		logger:   logger.With().Str("component", "nesting-sql").Logger(),
	}, nil
}

// Close closes the connection pool.
func (s *SQLSource) Close() error {
	return s.db.Close()
}

// ProgramNames lists programs posted within [from, to].
func (s *SQLSource) ProgramNames(ctx context.Context, from, to time.Time) ([]ProgramSummary, error) {
	rows, err := s.queryMaps(ctx, s.cfg.ProgramNamesQuery, from.UTC(), to.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to list nesting programs: %w", err)
	}

	summaries := make([]ProgramSummary, 0, len(rows))
	for i, row := range rows {
		r := newRowReader(row)
		summary := ProgramSummary{
			ProgramName:  r.str("ProgramName"),
			PostDateTime: r.ts("PostDateTime"),
		}
		if len(r.problems) > 0 {
			return nil, &ContractError{Row: i, Program: summary.ProgramName, Problems: r.problems}
		}
		summaries = append(summaries, summary)
	}

	s.logger.Debug().
		Time("from", from).
		Time("to", to).
		Int("programs", len(summaries)).
		Msg("Listed nesting programs")

	return summaries, nil
}

// Records returns the flat rows of the named programs.
func (s *SQLSource) Records(ctx context.Context, names []string) ([]Record, error) {
	if len(names) == 0 {
		return []Record{}, nil
	}

	marks := make([]string, len(names))
	args := make([]any, len(names))
	for i, name := range names {
		marks[i] = fmt.Sprintf("@p%d", i+1)
		args[i] = name
	}
	query := fmt.Sprintf(s.cfg.RecordsQuery, strings.Join(marks, ", "))

	rows, err := s.queryMaps(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch nesting records: %w", err)
	}

	records, err := decodeChecked(s.contract, rows)
	if err != nil {
		return nil, err
	}

	s.logger.Debug().
		Int("programs", len(names)).
		Int("records", len(records)).
		Msg("Fetched nesting records")

	return records, nil
}

// queryMaps runs a query and returns each row as a column map.
func (s *SQLSource) queryMaps(ctx context.Context, query string, args ...any) ([]map[string]any, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read columns: %w", err)
	}

	result := []map[string]any{}
	for rows.Next() {
		values := make([]any, len(columns))
		dest := make([]any, len(columns))
		for i := range values {
			dest[i] = &values[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		row := make(map[string]any, len(columns))
		for i, col := range columns {
			row[col] = values[i]
		}
		result = append(result, row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return result, nil
}
