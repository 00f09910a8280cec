package customer

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"

	"github.com/AtRiskMedia/supportwidget-go/internal/domain/widgeterr"
)

func TestValidateIdentifierHashPairing(t *testing.T) {
	cases := []struct {
		name    string
		c       Customer
		wantErr bool
	}{
		{"anonymous", Customer{}, false},
		{"identified with hash", Customer{Email: "a@b.com", CustomerHash: "h1"}, false},
		{"external id with hash", Customer{ExternalID: "u-1", CustomerHash: "h1"}, false},
		{"phone without hash", Customer{Phone: "+15550100"}, true},
		{"email without hash", Customer{Email: "a@b.com"}, true},
		{"hash without identifier", Customer{CustomerHash: "h1"}, true},
		{"empty strings are absent", Customer{Email: "", CustomerHash: ""}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.c.Validate()
			if tc.wantErr != (err != nil) {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tc.wantErr)
			}
			if err != nil && !widgeterr.IsConfiguration(err) {
				t.Fatalf("expected ConfigurationError, got %T", err)
			}
			if got := tc.c.HasIdentifier() != tc.c.HasHash(); got != tc.wantErr {
				t.Fatalf("XOR property violated for %+v", tc.c)
			}
		})
	}
}

func TestHashSubjectBindsEveryIdentifier(t *testing.T) {
	if got := (Customer{ExternalID: "u-1"}).HashSubject(); got != "u-1||" {
		t.Fatalf("subject = %q", got)
	}
	if got := (Customer{ExternalID: "u-1", Email: "a@b.com", Phone: "+15550100"}).HashSubject(); got != "u-1|a@b.com|+15550100" {
		t.Fatalf("subject = %q", got)
	}
	// an email must not be able to pose as an external id
	if (Customer{ExternalID: "a@b.com"}).HashSubject() == (Customer{Email: "a@b.com"}).HashSubject() {
		t.Fatal("identifier positions are not distinguished")
	}
}

func TestMakeTraits(t *testing.T) {
	cases := []struct {
		name string
		c    Customer
		want map[string]string
	}{
		{"nothing", Customer{}, nil},
		{"full name parts", Customer{FirstName: "Ada", LastName: "Lovelace", Name: "Countess"},
			map[string]string{"firstName": "Ada", "lastName": "Lovelace"}},
		{"name only when no parts", Customer{Name: "Ada L."}, map[string]string{"name": "Ada L."}},
		{"traits pass through", Customer{Traits: map[string]string{"plan": "pro", "name": "Ada"}},
			map[string]string{"plan": "pro", "name": "Ada"}},
		{"descriptor beats traits", Customer{FirstName: "Ada", Traits: map[string]string{"firstName": "Bob", "name": "Bob B"}},
			map[string]string{"firstName": "Ada"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.c.MakeTraits(); !reflect.DeepEqual(got, tc.want) {
				t.Errorf("MakeTraits() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestDisplayName(t *testing.T) {
	if got := DisplayName(map[string]string{"firstName": "Ada", "lastName": "Lovelace"}, "x"); got != "Ada Lovelace" {
		t.Errorf("got %q", got)
	}
	if got := DisplayName(map[string]string{"lastName": "Lovelace"}, "x"); got != "Lovelace" {
		t.Errorf("got %q", got)
	}
	if got := DisplayName(nil, "Customer 42"); got != "Customer 42" {
		t.Errorf("got %q", got)
	}
}

func TestInitRequestAnonymous(t *testing.T) {
	p := NewPayload("wd-1", "3fa85f64-5717-4562-b3fc-2c963f66afa6", Customer{})
	body, err := json.Marshal(NewInitRequest(p))
	if err != nil {
		t.Fatal(err)
	}
	s := string(body)
	if !strings.Contains(s, `"sessionId":"3fa85f64-5717-4562-b3fc-2c963f66afa6"`) {
		t.Errorf("sessionId missing: %s", s)
	}
	if strings.Contains(s, "customerHash") {
		t.Errorf("anonymous body must not carry customerHash: %s", s)
	}
}

func TestInitRequestIdentified(t *testing.T) {
	p := NewPayload("wd-1", "", Customer{Email: "a@b.com", CustomerHash: "h1"})
	req := NewInitRequest(p)
	if req.SessionID != nil {
		t.Errorf("identified body must not carry sessionId")
	}
	if req.CustomerEmail == nil || *req.CustomerEmail != "a@b.com" {
		t.Errorf("customerEmail not mapped")
	}
	if req.CustomerHash == nil || *req.CustomerHash != "h1" {
		t.Errorf("customerHash not mapped")
	}
}

func TestPayloadWireShapeUsesNulls(t *testing.T) {
	body, _ := json.Marshal(NewPayload("wd-1", "", Customer{}))
	s := string(body)
	for _, want := range []string{`"widgetId":"wd-1"`, `"externalId":null`, `"customerHash":null`, `"traits":{}`} {
		if !strings.Contains(s, want) {
			t.Errorf("payload %s missing %s", s, want)
		}
	}
	if strings.Contains(s, "sessionId") {
		t.Errorf("empty session must be omitted: %s", s)
	}
}

const validInit = `{
	"jwt": "tok", "create": true, "customerId": "c1",
	"externalId": null, "email": "a@b.com", "phone": null,
	"isEmailVerified": true, "isEmailPrimary": true,
	"name": "Ada", "avatarUrl": "https://avatar", "role": "visitor",
	"createdAt": "2024-01-01T00:00:00Z", "updatedAt": "2024-01-01T00:00:00Z"
}`

func TestDecodeInitResponse(t *testing.T) {
	res, err := DecodeInitResponse([]byte(validInit))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.JWT != "tok" || !res.Create || res.CustomerID != "c1" {
		t.Errorf("unexpected response %+v", res)
	}
	if res.Email == nil || *res.Email != "a@b.com" || res.ExternalID != nil {
		t.Errorf("nullable fields mishandled")
	}
	if !res.IsVerified {
		t.Errorf("isVerified should follow isEmailVerified when absent")
	}
}

func TestDecodeInitResponseAlternateShape(t *testing.T) {
	body := `{"jwt":"tok","create":false,"customerId":"c1","externalId":"u-1","email":null,"phone":null,
		"name":"Ada","avatarUrl":"a","isVerified":true,"role":"engaged","requireIdentities":["email"],
		"createdAt":"t","updatedAt":"t"}`
	res, err := DecodeInitResponse([]byte(body))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.IsVerified || !res.IsEmailVerified || res.IsEmailPrimary {
		t.Errorf("verification flags: %+v", res.Profile)
	}
	if !reflect.DeepEqual(res.RequireIdentities, []string{"email"}) {
		t.Errorf("requireIdentities lost")
	}
}

func TestDecodeInitResponseRejectsMissingFields(t *testing.T) {
	cases := map[string]string{
		"missing jwt":    strings.Replace(validInit, `"jwt": "tok",`, "", 1),
		"null create":    strings.Replace(validInit, `"create": true`, `"create": null`, 1),
		"missing role":   strings.Replace(validInit, `"role": "visitor",`, "", 1),
		"not an object":  `[]`,
		"truncated json": `{"jwt":`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := DecodeInitResponse([]byte(body)); err == nil {
				t.Fatalf("expected validation failure")
			}
		})
	}
}

func TestWithProfileKeepsToken(t *testing.T) {
	res, _ := DecodeInitResponse([]byte(validInit))
	a := Authenticated{WidgetID: "wd-1", InitResponse: res}
	updated := a.WithProfile(Profile{CustomerID: "c1", Name: "Ada Lovelace"})
	if updated.JWT != "tok" || updated.Name != "Ada Lovelace" || updated.WidgetID != "wd-1" {
		t.Fatalf("unexpected merge %+v", updated)
	}
}
