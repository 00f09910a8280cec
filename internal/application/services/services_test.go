package services

import (
	"errors"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/AtRiskMedia/supportwidget-go/internal/domain/entities/customer"
	"github.com/AtRiskMedia/supportwidget-go/internal/domain/widgeterr"
	"github.com/AtRiskMedia/supportwidget-go/internal/infrastructure/email/templates"
	"github.com/AtRiskMedia/supportwidget-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/supportwidget-go/internal/infrastructure/persistence/database"
	"github.com/AtRiskMedia/supportwidget-go/internal/infrastructure/persistence/widget"
	"github.com/AtRiskMedia/supportwidget-go/internal/infrastructure/security"
)

const testMaster = "master-secret"

type sentEmail struct {
	to    string
	props templates.VerificationProps
}

type recordingMailer struct {
	mu   sync.Mutex
	sent []sentEmail
}

func (m *recordingMailer) SendVerificationEmail(to string, props templates.VerificationProps) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentEmail{to: to, props: props})
	return nil
}

type testEnv struct {
	init      *InitService
	customers *CustomerService
	threads   *ThreadService
	verifier  *security.HashVerifier
	mailer    *recordingMailer
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := database.NewMemoryConnection(strings.ReplaceAll(t.Name(), "/", "_"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	if err := database.NewTableCreator().SeedWidget(db.DB, "wd-1", "Acme", "{}"); err != nil {
		t.Fatal(err)
	}

	logger := logging.NewNopLogger()
	widgetSvc := NewWidgetService(widget.NewWidgetRepository(db.DB, logger))
	customerRepo := widget.NewCustomerRepository(db.DB, logger)
	verifier := security.NewHashVerifier(testMaster)
	tokens := security.NewTokenIssuer("jwt-secret", time.Hour)
	mailer := &recordingMailer{}

	return &testEnv{
		init:      NewInitService(widgetSvc, customerRepo, verifier, tokens, logger),
		customers: NewCustomerService(widgetSvc, customerRepo, widget.NewEmailIdentityRepository(db.DB, logger), tokens, mailer, "http://api.test/", logger),
		threads:   NewThreadService(widget.NewThreadRepository(db.DB, logger)),
		verifier:  verifier,
		mailer:    mailer,
	}
}

func strPtr(s string) *string { return &s }

func TestInitAnonymousCreatesThenReuses(t *testing.T) {
	env := newTestEnv(t)
	req := customer.InitRequest{SessionID: strPtr("5f0c8f6e-8a54-4c1f-9d0a-2f1a2b3c4d5e")}

	first, err := env.init.Init("wd-1", req)
	if err != nil {
		t.Fatal(err)
	}
	if !first.Response.Create || first.Response.JWT == "" || first.Customer.Role != customer.RoleVisitor {
		t.Fatalf("first init = %+v", first.Response)
	}
	if got := first.Response.RequireIdentities; len(got) != 1 || got[0] != customer.IdentityEmail {
		t.Fatalf("requireIdentities = %v", got)
	}

	second, err := env.init.Init("wd-1", req)
	if err != nil {
		t.Fatal(err)
	}
	if second.Response.Create || second.Customer.ID != first.Customer.ID {
		t.Fatalf("second init should reuse the visitor: %+v", second.Response)
	}
}

func TestInitErrors(t *testing.T) {
	env := newTestEnv(t)

	cases := []struct {
		name     string
		widgetID string
		req      customer.InitRequest
		check    func(error) bool
	}{
		{"unknown widget", "wd-404", customer.InitRequest{SessionID: strPtr("s")}, func(err error) bool { return errors.Is(err, ErrWidgetNotFound) }},
		{"no session", "wd-1", customer.InitRequest{}, func(err error) bool { return errors.Is(err, ErrSessionRequired) }},
		{"identifier without hash", "wd-1", customer.InitRequest{CustomerEmail: strPtr("a@b.com")}, widgeterr.IsConfiguration},
		{"bad hash", "wd-1", customer.InitRequest{CustomerEmail: strPtr("a@b.com"), CustomerHash: strPtr("bad")}, func(err error) bool { return errors.Is(err, ErrInvalidHash) }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := env.init.Init(tc.widgetID, tc.req)
			if err == nil || !tc.check(err) {
				t.Fatalf("unexpected error %v", err)
			}
		})
	}
}

func TestInitIdentifiedCustomer(t *testing.T) {
	env := newTestEnv(t)
	hash, err := env.verifier.Compute("wd-1", customer.Customer{ExternalID: "ext-42", Email: "ada@example.com"}.HashSubject())
	if err != nil {
		t.Fatal(err)
	}
	req := customer.InitRequest{
		CustomerExternalID: strPtr("ext-42"),
		CustomerEmail:      strPtr("ada@example.com"),
		CustomerHash:       &hash,
		Traits:             map[string]string{"firstName": "Ada", "lastName": "Lovelace"},
	}

	res, err := env.init.Init("wd-1", req)
	if err != nil {
		t.Fatal(err)
	}
	p := res.Response.Profile
	if !res.Response.Create || p.Name != "Ada Lovelace" || !p.IsEmailVerified || p.Role != customer.RoleCustomer {
		t.Fatalf("profile = %+v", p)
	}
	if len(p.RequireIdentities) != 0 {
		t.Fatalf("identified customer asked for identities: %v", p.RequireIdentities)
	}

	again, err := env.init.Init("wd-1", req)
	if err != nil || again.Response.Create || again.Customer.ID != res.Customer.ID {
		t.Fatalf("second init = %+v, %v", again, err)
	}

	if _, err := env.init.Init("wd-2", req); !errors.Is(err, ErrWidgetNotFound) {
		t.Fatalf("unknown widget accepted: %v", err)
	}
}

func TestInitHashCoversEveryIdentifier(t *testing.T) {
	env := newTestEnv(t)
	hashFor := func(c customer.Customer) *string {
		h, err := env.verifier.Compute("wd-1", c.HashSubject())
		if err != nil {
			t.Fatal(err)
		}
		return &h
	}

	owner, err := env.init.Init("wd-1", customer.InitRequest{
		CustomerEmail: strPtr("owner@example.com"),
		CustomerHash:  hashFor(customer.Customer{Email: "owner@example.com"}),
	})
	if err != nil {
		t.Fatal(err)
	}

	// a hash issued for an external id alone cannot claim an extra email
	_, err = env.init.Init("wd-1", customer.InitRequest{
		CustomerExternalID: strPtr("other-ext"),
		CustomerEmail:      strPtr("owner@example.com"),
		CustomerHash:       hashFor(customer.Customer{ExternalID: "other-ext"}),
	})
	if !errors.Is(err, ErrInvalidHash) {
		t.Fatalf("expected invalid hash, got %v", err)
	}

	_, err = env.init.Init("wd-1", customer.InitRequest{
		CustomerExternalID: strPtr("fresh-ext"),
		CustomerPhone:      strPtr("+15550100"),
		CustomerHash:       hashFor(customer.Customer{ExternalID: "fresh-ext"}),
	})
	if !errors.Is(err, ErrInvalidHash) {
		t.Fatalf("unbound phone accepted: %v", err)
	}

	again, err := env.init.Init("wd-1", customer.InitRequest{
		CustomerEmail: strPtr("owner@example.com"),
		CustomerHash:  hashFor(customer.Customer{Email: "owner@example.com"}),
	})
	if err != nil || again.Customer.ID != owner.Customer.ID {
		t.Fatalf("owner init = %+v, %v", again, err)
	}
}

func TestAddAndVerifyEmailIdentity(t *testing.T) {
	env := newTestEnv(t)
	res, err := env.init.Init("wd-1", customer.InitRequest{SessionID: strPtr("sess-1")})
	if err != nil {
		t.Fatal(err)
	}
	customerID := res.Customer.ID

	if _, err := env.customers.AddEmailIdentity("wd-1", customerID, "not-an-email"); !errors.Is(err, ErrInvalidEmail) {
		t.Fatalf("expected invalid email, got %v", err)
	}

	rec, err := env.customers.AddEmailIdentity("wd-1", customerID, " Ada@Example.com ")
	if err != nil {
		t.Fatal(err)
	}
	if rec.Email == nil || *rec.Email != "ada@example.com" || rec.IsEmailVerified {
		t.Fatalf("record = %+v", rec)
	}
	if p := rec.Profile(); len(p.RequireIdentities) != 0 {
		t.Fatalf("email still required: %v", p.RequireIdentities)
	}

	if len(env.mailer.sent) != 1 || env.mailer.sent[0].to != "ada@example.com" {
		t.Fatalf("sent = %+v", env.mailer.sent)
	}
	link, err := url.Parse(env.mailer.sent[0].props.VerifyURL)
	if err != nil || link.Host != "api.test" || link.Path != "/widgets/wd-1/me/identities/verify/" {
		t.Fatalf("verify url = %q", env.mailer.sent[0].props.VerifyURL)
	}

	verified, err := env.customers.VerifyEmail("wd-1", link.Query().Get("token"))
	if err != nil || !verified.IsEmailVerified {
		t.Fatalf("VerifyEmail = %+v, %v", verified, err)
	}
	if _, err := env.customers.VerifyEmail("wd-1", "garbage"); !errors.Is(err, security.ErrInvalidToken) {
		t.Fatalf("expected invalid token, got %v", err)
	}

	other, err := env.init.Init("wd-1", customer.InitRequest{SessionID: strPtr("sess-2")})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := env.customers.AddEmailIdentity("wd-1", other.Customer.ID, "ada@example.com"); !errors.Is(err, ErrEmailInUse) {
		t.Fatalf("expected email in use, got %v", err)
	}
}

func TestThreads(t *testing.T) {
	env := newTestEnv(t)
	res, err := env.init.Init("wd-1", customer.InitRequest{SessionID: strPtr("sess-1")})
	if err != nil {
		t.Fatal(err)
	}
	rec := res.Customer

	if _, err := env.threads.Create("wd-1", rec, "   "); !errors.Is(err, ErrEmptyMessage) {
		t.Fatalf("expected empty message error, got %v", err)
	}

	created, err := env.threads.Create("wd-1", rec, "My invoice is wrong\nDetails follow")
	if err != nil {
		t.Fatal(err)
	}
	if created.Title != "My invoice is wrong" || !created.Chat.IsHead || created.Status != "todo" {
		t.Fatalf("created = %+v", created)
	}

	if _, err := env.threads.Send("wd-1", rec, created.ThreadID, "hello?"); err != nil {
		t.Fatal(err)
	}
	chats, err := env.threads.Messages("wd-1", rec.ID, created.ThreadID)
	if err != nil || len(chats) != 2 || chats[1].Body != "hello?" {
		t.Fatalf("messages = %v, %v", chats, err)
	}

	list, err := env.threads.List("wd-1", rec.ID)
	if err != nil || len(list) != 1 || list[0].PreviewText != "hello?" {
		t.Fatalf("list = %v, %v", list, err)
	}

	if _, err := env.threads.Messages("wd-1", "someone-else", created.ThreadID); !errors.Is(err, ErrThreadNotFound) {
		t.Fatalf("expected thread not found, got %v", err)
	}
}
