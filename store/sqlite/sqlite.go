/*
Package sqlite provides a SQLite-backed implementation of loyalty.TxStore.

PURPOSE:
  Durable storage for rules, the redemption catalog, client accounts, cards,
  stations, operators and the purchase log. In production the same schema
  runs on PostgreSQL with minor dialect changes.

APPEND-ONLY ENFORCEMENT:
  - fuel_transactions: INSERT only, no UPDATE or DELETE statements exist
  - redemption_thresholds: INSERT only
  - points_rules: INSERT, plus the single UPDATE that closes a rule

KEY TABLES:
  points_rules:          Versioned rate history
  redemption_thresholds: Catalog tiers
  client_accounts:       Client identity and the point balance
  loyalty_cards:         Card number -> client (1:1)
  stations, operators:   Back-office identities
  fuel_transactions:     Immutable purchase log

INDEXES:
  - idx_points_rules_single_active: Partial unique index, at most one active rule
  - idx_fuel_transactions_timestamp: Report range scans
  - idx_fuel_transactions_client: Client history

ENCODING:
  Decimals are stored as TEXT (exact). Times are stored as fixed-width UTC
  TEXT so lexical order equals chronological order and range queries can
  use plain string comparison.

CONCURRENCY:
  The pool is limited to one connection: SQLite serializes writers anyway,
  and ":memory:" databases exist per connection. Code inside WithTx must use
  the Store it is handed; the outer Store would wait for the connection the
  transaction holds.

USAGE:
  store, err := sqlite.New("./data/loyalty.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  engine, err := loyalty.NewEngine(store)
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/warp/loyalty-engine/generic"
	"github.com/warp/loyalty-engine/loyalty"
)

// timeLayout is fixed width so TEXT comparison orders correctly.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Store implements loyalty.TxStore.
type Store struct {
	queries
	db *sql.DB
}

var _ loyalty.TxStore = (*Store)(nil)

// New opens (or creates) the database at dbPath and migrates the schema.
// Missing parent directories are created. Use ":memory:" for a throwaway
// database.
func New(dbPath string) (*Store, error) {
	if dbPath != ":memory:" && !strings.HasPrefix(dbPath, "file:") {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	store := &Store{queries: queries{q: db}, db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Ping reports whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS points_rules (
		id TEXT PRIMARY KEY,
		points_per_liter TEXT NOT NULL,
		valid_from TEXT NOT NULL,
		valid_to TEXT,
		is_active INTEGER NOT NULL DEFAULT 0,
		version INTEGER NOT NULL UNIQUE,
		created_at TEXT NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_points_rules_single_active
		ON points_rules(is_active) WHERE is_active = 1;

	CREATE TABLE IF NOT EXISTS redemption_thresholds (
		id TEXT PRIMARY KEY,
		points_required TEXT NOT NULL,
		points_required_num REAL NOT NULL,
		monetary_value TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS client_accounts (
		id TEXT PRIMARY KEY,
		phone TEXT NOT NULL UNIQUE,
		last_name TEXT NOT NULL,
		first_name TEXT NOT NULL,
		registered_at TEXT NOT NULL,
		balance TEXT NOT NULL DEFAULT '0',
		version INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS loyalty_cards (
		id TEXT PRIMARY KEY,
		number TEXT NOT NULL UNIQUE,
		client_id TEXT NOT NULL UNIQUE REFERENCES client_accounts(id),
		active INTEGER NOT NULL DEFAULT 1,
		issued_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS stations (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		address TEXT NOT NULL DEFAULT '',
		city TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS operators (
		id TEXT PRIMARY KEY,
		username TEXT NOT NULL UNIQUE,
		role TEXT NOT NULL,
		station_id TEXT REFERENCES stations(id),
		active INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS fuel_transactions (
		id TEXT PRIMARY KEY,
		client_id TEXT NOT NULL REFERENCES client_accounts(id),
		station_id TEXT NOT NULL REFERENCES stations(id),
		operator_id TEXT NOT NULL REFERENCES operators(id),
		rule_id TEXT NOT NULL REFERENCES points_rules(id),
		threshold_id TEXT REFERENCES redemption_thresholds(id),
		timestamp TEXT NOT NULL,
		liters TEXT NOT NULL,
		gross_amount TEXT NOT NULL,
		discount TEXT NOT NULL,
		net_amount TEXT NOT NULL,
		points_earned TEXT NOT NULL,
		points_redeemed TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_fuel_transactions_timestamp
		ON fuel_transactions(timestamp, id);

	CREATE INDEX IF NOT EXISTS idx_fuel_transactions_client
		ON fuel_transactions(client_id, timestamp);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// TRANSACTION SUPPORT
// =============================================================================

// WithTx executes fn within a transaction.
func (s *Store) WithTx(ctx context.Context, fn func(loyalty.Store) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(queries{q: sqlTx}); err != nil {
		return err
	}

	return sqlTx.Commit()
}

// Reset deletes all data. Used to reload the demo data set.
func (s *Store) Reset(ctx context.Context) error {
	tables := []string{
		"fuel_transactions",
		"loyalty_cards",
		"operators",
		"stations",
		"client_accounts",
		"redemption_thresholds",
		"points_rules",
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, table := range tables {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}
	return tx.Commit()
}

// =============================================================================
// QUERIES - Shared by the pool and by transactions
// =============================================================================

// dbtx is satisfied by both *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type queries struct {
	q dbtx
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("bad timestamp %q: %w", s, err)
	}
	return t, nil
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func parseDecimal(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("bad decimal %q: %w", s, err)
	}
	return d, nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

// =============================================================================
// POINTS RULES
// =============================================================================

const ruleColumns = `id, points_per_liter, valid_from, valid_to, is_active, version, created_at`

func (s queries) ActiveRule(ctx context.Context) (*loyalty.PointsRule, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+ruleColumns+` FROM points_rules WHERE is_active = 1`)
	return scanRuleRow(row)
}

func (s queries) Rule(ctx context.Context, id loyalty.RuleID) (*loyalty.PointsRule, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+ruleColumns+` FROM points_rules WHERE id = ?`, string(id))
	return scanRuleRow(row)
}

func (s queries) Rules(ctx context.Context) ([]loyalty.PointsRule, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT `+ruleColumns+` FROM points_rules ORDER BY version`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []loyalty.PointsRule
	for rows.Next() {
		r, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

func (s queries) LatestRuleVersion(ctx context.Context) (int, error) {
	var version int
	err := s.q.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM points_rules`).Scan(&version)
	return version, err
}

func (s queries) InsertRule(ctx context.Context, rule loyalty.PointsRule) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO points_rules (`+ruleColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		string(rule.ID),
		rule.PointsPerLiter.String(),
		formatTime(rule.ValidFrom),
		nullTime(rule.ValidTo),
		rule.IsActive,
		rule.Version,
		formatTime(rule.CreatedAt),
	)
	if isUniqueViolation(err) {
		return &loyalty.DuplicateError{Kind: loyalty.KindRule, Field: "active flag or version", Value: string(rule.ID)}
	}
	return err
}

func (s queries) CloseRule(ctx context.Context, id loyalty.RuleID, at time.Time) error {
	res, err := s.q.ExecContext(ctx,
		`UPDATE points_rules SET is_active = 0, valid_to = ? WHERE id = ?`,
		formatTime(at), string(id),
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &loyalty.NotFoundError{Kind: loyalty.KindRule, ID: string(id)}
	}
	return nil
}

func scanRuleRow(row *sql.Row) (*loyalty.PointsRule, error) {
	r, err := scanRule(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func scanRule(sc scanner) (loyalty.PointsRule, error) {
	var (
		r                 loyalty.PointsRule
		id, ppl, from, at string
		validTo           sql.NullString
		active            bool
	)
	if err := sc.Scan(&id, &ppl, &from, &validTo, &active, &r.Version, &at); err != nil {
		return loyalty.PointsRule{}, err
	}

	var err error
	r.ID = loyalty.RuleID(id)
	r.IsActive = active
	if r.PointsPerLiter, err = parseDecimal(ppl); err != nil {
		return loyalty.PointsRule{}, err
	}
	if r.ValidFrom, err = parseTime(from); err != nil {
		return loyalty.PointsRule{}, err
	}
	if r.CreatedAt, err = parseTime(at); err != nil {
		return loyalty.PointsRule{}, err
	}
	if validTo.Valid {
		t, err := parseTime(validTo.String)
		if err != nil {
			return loyalty.PointsRule{}, err
		}
		r.ValidTo = &t
	}
	return r, nil
}

// =============================================================================
// REDEMPTION THRESHOLDS
// =============================================================================

const thresholdColumns = `id, points_required, monetary_value, description, created_at`

func (s queries) InsertThreshold(ctx context.Context, t loyalty.RedemptionThreshold) error {
	num, _ := t.PointsRequired.Value.Float64()
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO redemption_thresholds (id, points_required, points_required_num, monetary_value, description, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		string(t.ID),
		t.PointsRequired.Value.String(),
		num,
		t.MonetaryValue.Value.String(),
		t.Description,
		formatTime(t.CreatedAt),
	)
	if isUniqueViolation(err) {
		return &loyalty.DuplicateError{Kind: loyalty.KindThreshold, Field: "id", Value: string(t.ID)}
	}
	return err
}

func (s queries) Threshold(ctx context.Context, id loyalty.ThresholdID) (*loyalty.RedemptionThreshold, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+thresholdColumns+` FROM redemption_thresholds WHERE id = ?`, string(id))
	t, err := scanThreshold(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// Thresholds orders by the numeric shadow column; exact ties are settled by
// the catalog's own sort.
func (s queries) Thresholds(ctx context.Context) ([]loyalty.RedemptionThreshold, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT `+thresholdColumns+` FROM redemption_thresholds ORDER BY points_required_num, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []loyalty.RedemptionThreshold
	for rows.Next() {
		t, err := scanThreshold(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, t)
	}
	return result, rows.Err()
}

func scanThreshold(sc scanner) (loyalty.RedemptionThreshold, error) {
	var id, points, value, desc, at string
	if err := sc.Scan(&id, &points, &value, &desc, &at); err != nil {
		return loyalty.RedemptionThreshold{}, err
	}
	p, err := parseDecimal(points)
	if err != nil {
		return loyalty.RedemptionThreshold{}, err
	}
	v, err := parseDecimal(value)
	if err != nil {
		return loyalty.RedemptionThreshold{}, err
	}
	created, err := parseTime(at)
	if err != nil {
		return loyalty.RedemptionThreshold{}, err
	}
	return loyalty.RedemptionThreshold{
		ID:             loyalty.ThresholdID(id),
		PointsRequired: generic.Points(p),
		MonetaryValue:  generic.Money(v),
		Description:    desc,
		CreatedAt:      created,
	}, nil
}

// =============================================================================
// CLIENT ACCOUNTS
// =============================================================================

const clientColumns = `id, phone, last_name, first_name, registered_at, balance, version`

func (s queries) InsertClient(ctx context.Context, c loyalty.ClientAccount) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO client_accounts (`+clientColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		string(c.ID),
		c.Phone,
		c.LastName,
		c.FirstName,
		formatTime(c.RegisteredAt),
		c.Balance.Value.String(),
		c.Version,
	)
	if isUniqueViolation(err) {
		return &loyalty.DuplicateError{Kind: loyalty.KindClient, Field: "phone", Value: c.Phone}
	}
	return err
}

func (s queries) Client(ctx context.Context, id loyalty.ClientID) (*loyalty.ClientAccount, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+clientColumns+` FROM client_accounts WHERE id = ?`, string(id))
	return scanClientRow(row)
}

func (s queries) ClientByPhone(ctx context.Context, phone string) (*loyalty.ClientAccount, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+clientColumns+` FROM client_accounts WHERE phone = ?`, phone)
	return scanClientRow(row)
}

func (s queries) Clients(ctx context.Context) ([]loyalty.ClientAccount, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT `+clientColumns+` FROM client_accounts ORDER BY last_name, first_name, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []loyalty.ClientAccount
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	return result, rows.Err()
}

// UpdateBalance is a compare-and-swap on the version column.
func (s queries) UpdateBalance(ctx context.Context, id loyalty.ClientID, expectedVersion int, balance generic.Amount) error {
	res, err := s.q.ExecContext(ctx, `
		UPDATE client_accounts SET balance = ?, version = version + 1
		WHERE id = ? AND version = ?
	`, balance.Value.String(), string(id), expectedVersion)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}

	existing, err := s.Client(ctx, id)
	if err != nil {
		return err
	}
	if existing == nil {
		return &loyalty.NotFoundError{Kind: loyalty.KindClient, ID: string(id)}
	}
	return loyalty.ErrConcurrentModification
}

func scanClientRow(row *sql.Row) (*loyalty.ClientAccount, error) {
	c, err := scanClient(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func scanClient(sc scanner) (loyalty.ClientAccount, error) {
	var (
		c                   loyalty.ClientAccount
		id, registered, bal string
	)
	if err := sc.Scan(&id, &c.Phone, &c.LastName, &c.FirstName, &registered, &bal, &c.Version); err != nil {
		return loyalty.ClientAccount{}, err
	}
	c.ID = loyalty.ClientID(id)

	var err error
	if c.RegisteredAt, err = parseTime(registered); err != nil {
		return loyalty.ClientAccount{}, err
	}
	balance, err := parseDecimal(bal)
	if err != nil {
		return loyalty.ClientAccount{}, err
	}
	c.Balance = generic.Points(balance)
	return c, nil
}

// =============================================================================
// LOYALTY CARDS
// =============================================================================

const cardColumns = `id, number, client_id, active, issued_at`

func (s queries) InsertCard(ctx context.Context, card loyalty.LoyaltyCard) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO loyalty_cards (`+cardColumns+`)
		VALUES (?, ?, ?, ?, ?)
	`, string(card.ID), card.Number, string(card.ClientID), card.Active, formatTime(card.IssuedAt))
	if isUniqueViolation(err) {
		return &loyalty.DuplicateError{Kind: loyalty.KindCard, Field: "number or client", Value: card.Number}
	}
	return err
}

func (s queries) CardByNumber(ctx context.Context, number string) (*loyalty.LoyaltyCard, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+cardColumns+` FROM loyalty_cards WHERE number = ?`, number)
	return scanCardRow(row)
}

func (s queries) CardByClient(ctx context.Context, clientID loyalty.ClientID) (*loyalty.LoyaltyCard, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+cardColumns+` FROM loyalty_cards WHERE client_id = ?`, string(clientID))
	return scanCardRow(row)
}

func (s queries) SetCardActive(ctx context.Context, id loyalty.CardID, active bool) error {
	res, err := s.q.ExecContext(ctx, `UPDATE loyalty_cards SET active = ? WHERE id = ?`, active, string(id))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &loyalty.NotFoundError{Kind: loyalty.KindCard, ID: string(id)}
	}
	return nil
}

func scanCardRow(row *sql.Row) (*loyalty.LoyaltyCard, error) {
	var (
		c                loyalty.LoyaltyCard
		id, clientID, at string
	)
	err := row.Scan(&id, &c.Number, &clientID, &c.Active, &at)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	c.ID = loyalty.CardID(id)
	c.ClientID = loyalty.ClientID(clientID)
	if c.IssuedAt, err = parseTime(at); err != nil {
		return nil, err
	}
	return &c, nil
}

// =============================================================================
// STATIONS AND OPERATORS
// =============================================================================

func (s queries) InsertStation(ctx context.Context, st loyalty.Station) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO stations (id, name, address, city, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, string(st.ID), st.Name, st.Address, st.City, formatTime(st.CreatedAt))
	if isUniqueViolation(err) {
		return &loyalty.DuplicateError{Kind: loyalty.KindStation, Field: "name", Value: st.Name}
	}
	return err
}

func (s queries) Station(ctx context.Context, id loyalty.StationID) (*loyalty.Station, error) {
	row := s.q.QueryRowContext(ctx,
		`SELECT id, name, address, city, created_at FROM stations WHERE id = ?`, string(id))
	st, err := scanStation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &st, nil
}

func (s queries) Stations(ctx context.Context) ([]loyalty.Station, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT id, name, address, city, created_at FROM stations ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []loyalty.Station
	for rows.Next() {
		st, err := scanStation(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, st)
	}
	return result, rows.Err()
}

func scanStation(sc scanner) (loyalty.Station, error) {
	var st loyalty.Station
	var id, at string
	if err := sc.Scan(&id, &st.Name, &st.Address, &st.City, &at); err != nil {
		return loyalty.Station{}, err
	}
	st.ID = loyalty.StationID(id)
	var err error
	if st.CreatedAt, err = parseTime(at); err != nil {
		return loyalty.Station{}, err
	}
	return st, nil
}

const operatorColumns = `id, username, role, station_id, active, created_at`

func (s queries) InsertOperator(ctx context.Context, op loyalty.Operator) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO operators (`+operatorColumns+`)
		VALUES (?, ?, ?, ?, ?, ?)
	`, string(op.ID), op.Username, string(op.Role), nullString(string(op.StationID)), op.Active, formatTime(op.CreatedAt))
	if isUniqueViolation(err) {
		return &loyalty.DuplicateError{Kind: loyalty.KindOperator, Field: "username", Value: op.Username}
	}
	return err
}

func (s queries) Operator(ctx context.Context, id loyalty.OperatorID) (*loyalty.Operator, error) {
	row := s.q.QueryRowContext(ctx,
		`SELECT `+operatorColumns+` FROM operators WHERE id = ?`, string(id))
	op, err := scanOperator(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &op, nil
}

func (s queries) Operators(ctx context.Context) ([]loyalty.Operator, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT `+operatorColumns+` FROM operators ORDER BY username`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []loyalty.Operator
	for rows.Next() {
		op, err := scanOperator(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, op)
	}
	return result, rows.Err()
}

func scanOperator(sc scanner) (loyalty.Operator, error) {
	var (
		op           loyalty.Operator
		id, role, at string
		station      sql.NullString
	)
	if err := sc.Scan(&id, &op.Username, &role, &station, &op.Active, &at); err != nil {
		return loyalty.Operator{}, err
	}
	op.ID = loyalty.OperatorID(id)
	op.Role = loyalty.Role(role)
	op.StationID = loyalty.StationID(station.String)
	var err error
	if op.CreatedAt, err = parseTime(at); err != nil {
		return loyalty.Operator{}, err
	}
	return op, nil
}

func (s queries) SetOperatorActive(ctx context.Context, id loyalty.OperatorID, active bool) error {
	res, err := s.q.ExecContext(ctx, `UPDATE operators SET active = ? WHERE id = ?`, active, string(id))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &loyalty.NotFoundError{Kind: loyalty.KindOperator, ID: string(id)}
	}
	return nil
}

// =============================================================================
// FUEL TRANSACTIONS - Append-only
// =============================================================================

const transactionColumns = `id, client_id, station_id, operator_id, rule_id, threshold_id, timestamp,
	liters, gross_amount, discount, net_amount, points_earned, points_redeemed`

func (s queries) AppendTransaction(ctx context.Context, tx loyalty.FuelTransaction) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO fuel_transactions (`+transactionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		string(tx.ID),
		string(tx.ClientID),
		string(tx.StationID),
		string(tx.OperatorID),
		string(tx.RuleID),
		nullString(string(tx.ThresholdID)),
		formatTime(tx.Timestamp),
		tx.Liters.Value.String(),
		tx.GrossAmount.Value.String(),
		tx.Discount.Value.String(),
		tx.NetAmount.Value.String(),
		tx.PointsEarned.Value.String(),
		tx.PointsRedeemed.Value.String(),
	)
	if isUniqueViolation(err) {
		return &loyalty.DuplicateError{Kind: loyalty.KindTransaction, Field: "id", Value: string(tx.ID)}
	}
	if err != nil {
		return fmt.Errorf("failed to append transaction: %w", err)
	}
	return nil
}

func (s queries) Transaction(ctx context.Context, id loyalty.TransactionID) (*loyalty.FuelTransaction, error) {
	row := s.q.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM fuel_transactions WHERE id = ?`, string(id))
	tx, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &tx, nil
}

func (s queries) TransactionsByClient(ctx context.Context, clientID loyalty.ClientID) ([]loyalty.FuelTransaction, error) {
	return s.queryTransactions(ctx, `
		SELECT `+transactionColumns+` FROM fuel_transactions
		WHERE client_id = ?
		ORDER BY timestamp, id
	`, string(clientID))
}

func (s queries) TransactionsBetween(ctx context.Context, from, to time.Time) ([]loyalty.FuelTransaction, error) {
	return s.queryTransactions(ctx, `
		SELECT `+transactionColumns+` FROM fuel_transactions
		WHERE timestamp >= ? AND timestamp <= ?
		ORDER BY timestamp, id
	`, formatTime(from), formatTime(to))
}

func (s queries) queryTransactions(ctx context.Context, query string, args ...any) ([]loyalty.FuelTransaction, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []loyalty.FuelTransaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, tx)
	}
	return result, rows.Err()
}

func scanTransaction(sc scanner) (loyalty.FuelTransaction, error) {
	var (
		tx                                          loyalty.FuelTransaction
		id, client, station, operator, rule, ts     string
		threshold                                   sql.NullString
		liters, gross, discount, net, earned, spent string
	)
	err := sc.Scan(&id, &client, &station, &operator, &rule, &threshold, &ts,
		&liters, &gross, &discount, &net, &earned, &spent)
	if err != nil {
		return loyalty.FuelTransaction{}, err
	}

	tx.ID = loyalty.TransactionID(id)
	tx.ClientID = loyalty.ClientID(client)
	tx.StationID = loyalty.StationID(station)
	tx.OperatorID = loyalty.OperatorID(operator)
	tx.RuleID = loyalty.RuleID(rule)
	tx.ThresholdID = loyalty.ThresholdID(threshold.String)
	if tx.Timestamp, err = parseTime(ts); err != nil {
		return loyalty.FuelTransaction{}, err
	}

	amounts := []struct {
		raw  string
		dst  *generic.Amount
		unit generic.Unit
	}{
		{liters, &tx.Liters, generic.UnitLiters},
		{gross, &tx.GrossAmount, generic.UnitCurrency},
		{discount, &tx.Discount, generic.UnitCurrency},
		{net, &tx.NetAmount, generic.UnitCurrency},
		{earned, &tx.PointsEarned, generic.UnitPoints},
		{spent, &tx.PointsRedeemed, generic.UnitPoints},
	}
	for _, a := range amounts {
		if *a.dst, err = generic.ParseAmount(a.raw, a.unit); err != nil {
			return loyalty.FuelTransaction{}, err
		}
	}
	return tx, nil
}
