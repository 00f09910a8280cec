package widget

import (
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/AtRiskMedia/supportwidget-go/internal/domain/entities/threads"
	"github.com/AtRiskMedia/supportwidget-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/supportwidget-go/pkg/config"
)

const threadSelect = `SELECT t.id, t.customer_id, c.name, t.title, t.description, t.status, t.replied, t.priority,
	t.channel, t.preview_text, t.inbound_first_seq, t.inbound_last_seq, t.created_at, t.updated_at
	FROM threads t JOIN customers c ON c.id = t.customer_id`

type ThreadRepository struct {
	db     *sql.DB
	logger *logging.ChanneledLogger
}

func NewThreadRepository(db *sql.DB, logger *logging.ChanneledLogger) *ThreadRepository {
	return &ThreadRepository{db: db, logger: logger}
}

// FindByCustomer lists a customer's threads, most recently updated first.
func (r *ThreadRepository) FindByCustomer(widgetID, customerID string) ([]*threads.Thread, error) {
	query := threadSelect + ` WHERE t.widget_id = ? AND t.customer_id = ? ORDER BY t.updated_at DESC`

	start := time.Now()
	rows, err := r.db.Query(query, widgetID, customerID)
	if err != nil {
		r.logger.Database().Error("Thread list failed", "error", err.Error(), "widgetId", widgetID)
		return nil, fmt.Errorf("failed to query threads: %w", err)
	}
	defer rows.Close()

	out := []*threads.Thread{}
	for rows.Next() {
		t, err := scanThread(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate threads: %w", err)
	}
	if d := time.Since(start); d > config.SlowQueryThreshold {
		r.logger.LogSlowQuery(query, d, widgetID)
	}
	return out, nil
}

func (r *ThreadRepository) FindByID(widgetID, customerID, threadID string) (*threads.Thread, error) {
	row := r.db.QueryRow(threadSelect+` WHERE t.widget_id = ? AND t.customer_id = ? AND t.id = ?`, widgetID, customerID, threadID)
	t, err := scanThread(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return t, err
}

// Create inserts a thread together with its head chat.
func (r *ThreadRepository) Create(widgetID string, thread *threads.Thread, head *threads.Chat) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin thread transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	head.Sequence = now.UnixMilli()
	head.IsHead = true
	head.ThreadID = thread.ThreadID
	head.CreatedAt, head.UpdatedAt = formatTime(now), formatTime(now)

	seq := strconv.FormatInt(head.Sequence, 10)
	thread.InboundFirstSeqID, thread.InboundLastSeqID = &seq, &seq
	thread.InboundCustomer = head.Customer
	thread.CreatedAt, thread.UpdatedAt = formatTime(now), formatTime(now)

	_, err = tx.Exec(`INSERT INTO threads (id, widget_id, customer_id, title, description, status, replied, priority, channel,
		preview_text, inbound_first_seq, inbound_last_seq, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		thread.ThreadID, widgetID, thread.Customer.CustomerID, thread.Title, thread.Description, thread.Status, thread.Replied,
		thread.Priority, thread.Channel, thread.PreviewText, seq, seq, thread.CreatedAt, thread.UpdatedAt)
	if err != nil {
		r.logger.Database().Error("Thread insert failed", "error", err.Error(), "widgetId", widgetID)
		return fmt.Errorf("failed to insert thread: %w", err)
	}
	if err := insertChat(tx, head); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit thread: %w", err)
	}
	r.logger.Database().Info("Thread created", "threadId", thread.ThreadID, "widgetId", widgetID)
	return nil
}

func (r *ThreadRepository) FindChats(threadID string) ([]*threads.Chat, error) {
	rows, err := r.db.Query(`SELECT ch.id, ch.thread_id, ch.body, ch.sequence, ch.customer_id, c.name, ch.member_id, ch.member_name,
		ch.is_head, ch.created_at, ch.updated_at
		FROM chats ch LEFT JOIN customers c ON c.id = ch.customer_id
		WHERE ch.thread_id = ? ORDER BY ch.sequence`, threadID)
	if err != nil {
		return nil, fmt.Errorf("failed to query chats: %w", err)
	}
	defer rows.Close()

	out := []*threads.Chat{}
	for rows.Next() {
		var ch threads.Chat
		var customerID, customerName, memberID, memberName sql.NullString
		if err := rows.Scan(&ch.ChatID, &ch.ThreadID, &ch.Body, &ch.Sequence, &customerID, &customerName, &memberID, &memberName,
			&ch.IsHead, &ch.CreatedAt, &ch.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan chat: %w", err)
		}
		if customerID.Valid {
			ch.Customer = &threads.CustomerRef{CustomerID: customerID.String, Name: customerName.String}
		}
		if memberID.Valid {
			ch.Member = &threads.MemberRef{MemberID: memberID.String, Name: memberName.String}
		}
		out = append(out, &ch)
	}
	return out, rows.Err()
}

// AppendChat adds a customer message to the thread and moves the thread's inbound markers.
// Sequences are millisecond timestamps kept strictly increasing per thread.
func (r *ThreadRepository) AppendChat(widgetID string, thread *threads.Thread, chat *threads.Chat) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin chat transaction: %w", err)
	}
	defer tx.Rollback()

	var last int64
	if err := tx.QueryRow(`SELECT COALESCE(MAX(sequence), 0) FROM chats WHERE thread_id = ?`, thread.ThreadID).Scan(&last); err != nil {
		return fmt.Errorf("failed to read chat sequence: %w", err)
	}

	now := time.Now().UTC()
	chat.Sequence = max(now.UnixMilli(), last+1)
	chat.ThreadID = thread.ThreadID
	chat.CreatedAt, chat.UpdatedAt = formatTime(now), formatTime(now)
	if err := insertChat(tx, chat); err != nil {
		return err
	}

	seq := strconv.FormatInt(chat.Sequence, 10)
	if thread.InboundFirstSeqID == nil {
		thread.InboundFirstSeqID = &seq
	}
	thread.InboundLastSeqID = &seq
	thread.InboundCustomer = chat.Customer
	thread.PreviewText = chat.Body
	thread.Replied = false
	thread.UpdatedAt = chat.UpdatedAt

	_, err = tx.Exec(`UPDATE threads SET preview_text = ?, replied = 0, inbound_first_seq = ?, inbound_last_seq = ?, updated_at = ?
		WHERE id = ? AND widget_id = ?`, thread.PreviewText, *thread.InboundFirstSeqID, seq, thread.UpdatedAt, thread.ThreadID, widgetID)
	if err != nil {
		return fmt.Errorf("failed to update thread: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit chat: %w", err)
	}
	return nil
}

func insertChat(tx *sql.Tx, ch *threads.Chat) error {
	var customerID, memberID, memberName sql.NullString
	if ch.Customer != nil {
		customerID = sql.NullString{String: ch.Customer.CustomerID, Valid: true}
	}
	if ch.Member != nil {
		memberID = sql.NullString{String: ch.Member.MemberID, Valid: true}
		memberName = sql.NullString{String: ch.Member.Name, Valid: true}
	}
	_, err := tx.Exec(`INSERT INTO chats (id, thread_id, body, sequence, customer_id, member_id, member_name, is_head, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ch.ChatID, ch.ThreadID, ch.Body, ch.Sequence, customerID, memberID, memberName, ch.IsHead, ch.CreatedAt, ch.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert chat: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanThread(row rowScanner) (*threads.Thread, error) {
	var t threads.Thread
	var firstSeq, lastSeq sql.NullString
	err := row.Scan(&t.ThreadID, &t.Customer.CustomerID, &t.Customer.Name, &t.Title, &t.Description, &t.Status, &t.Replied,
		&t.Priority, &t.Channel, &t.PreviewText, &firstSeq, &lastSeq, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	t.InboundFirstSeqID = stringPtr(firstSeq)
	t.InboundLastSeqID = stringPtr(lastSeq)
	if t.InboundLastSeqID != nil {
		ref := t.Customer
		t.InboundCustomer = &ref
	}
	return &t, nil
}
