package mockregister

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func get(t *testing.T, url string, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, body
}

func TestSearchFiltersByNameAndType(t *testing.T) {
	t.Parallel()

	s := New()
	s.AddSearchResult(SearchEntry{Type: "firm", Name: "Hiscox Insurance Company Limited", ReferenceNumber: "113849", Status: "Authorised"})
	s.AddSearchResult(SearchEntry{Type: "firm", Name: "Hiscox Underwriting Ltd", ReferenceNumber: "184717", Status: "Authorised"})
	s.AddSearchResult(SearchEntry{Type: "individual", Name: "John Hiscox", ReferenceNumber: "JXH01234", Status: "Active"})
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	resp, body := get(t, ts.URL+"/services/V0.1/Search?q=hiscox&type=firm", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var env struct {
		Status  string
		Message string
		Data    []map[string]string
	}
	if err := json.Unmarshal(body, &env); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if env.Status != "FSR-API-04-01-00" {
		t.Errorf("Status = %q, want FSR-API-04-01-00", env.Status)
	}
	if len(env.Data) != 2 {
		t.Fatalf("len(Data) = %d, want 2", len(env.Data))
	}
	if got := env.Data[0]["Reference Number"]; got != "113849" {
		t.Errorf("first record reference = %q, want 113849", got)
	}
	if got := env.Data[0]["Type of business or Individual"]; got != "Firm" {
		t.Errorf("first record type = %q, want Firm", got)
	}
}

func TestSearchNoMatchOmitsData(t *testing.T) {
	t.Parallel()

	s := New()
	s.AddSearchResult(SearchEntry{Type: "firm", Name: "Barclays Bank PLC", ReferenceNumber: "122702"})
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	resp, body := get(t, ts.URL+"/Search?q=nonexistent&type=firm", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var env map[string]json.RawMessage
	if err := json.Unmarshal(body, &env); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if string(env["Status"]) != `"FSR-API-04-01-11"` {
		t.Errorf("Status = %s, want FSR-API-04-01-11", env["Status"])
	}
	if _, ok := env["Data"]; ok {
		t.Errorf("Data key present in no-match response: %s", body)
	}
}

func TestResourceRoundTrip(t *testing.T) {
	t.Parallel()

	s := New()
	s.SetResource("Firm/113849/Names", []map[string]string{{"Name": "Hiscox"}})
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	_, body := get(t, ts.URL+"/services/V0.1/Firm/113849/Names", nil)
	var env struct {
		Data []map[string]string
	}
	if err := json.Unmarshal(body, &env); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(env.Data) != 1 || env.Data[0]["Name"] != "Hiscox" {
		t.Errorf("Data = %v, want the stored fixture", env.Data)
	}
}

func TestUnknownReferenceServedAsEmptyOK(t *testing.T) {
	t.Parallel()

	s := New()
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	resp, body := get(t, ts.URL+"/Firm/999999", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if strings.Contains(string(body), `"Data"`) {
		t.Errorf("unknown reference response carries Data: %s", body)
	}
}

func TestNullDataFixture(t *testing.T) {
	t.Parallel()

	s := New()
	s.SetResource("Individuals/MXC29012/DisciplinaryHistory", nil)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	_, body := get(t, ts.URL+"/Individuals/MXC29012/DisciplinaryHistory", nil)
	var env map[string]json.RawMessage
	if err := json.Unmarshal(body, &env); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if string(env["Data"]) != "null" {
		t.Errorf("Data = %s, want null", env["Data"])
	}
}

func TestUnknownRootIs404(t *testing.T) {
	t.Parallel()

	s := New()
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	resp, _ := get(t, ts.URL+"/Nonsense/12345", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestAuthEnforcement(t *testing.T) {
	t.Parallel()

	s := New()
	s.RequireAuth("user@example.com", "secret-key")
	s.SetResource("Firm/113849", map[string]string{"Organisation Name": "Hiscox"})
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	resp, _ := get(t, ts.URL+"/Firm/113849", map[string]string{
		"X-Auth-Email": "user@example.com",
		"X-Auth-Key":   "wrong",
	})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("wrong key: status = %d, want 401", resp.StatusCode)
	}

	resp, _ = get(t, ts.URL+"/Firm/113849", map[string]string{
		"X-Auth-Email": "user@example.com",
		"X-Auth-Key":   "secret-key",
	})
	if resp.StatusCode != http.StatusOK {
		t.Errorf("correct credentials: status = %d, want 200", resp.StatusCode)
	}
}

func TestCallsRecorded(t *testing.T) {
	t.Parallel()

	s := New()
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	get(t, ts.URL+"/services/V0.1/Search?q=hiscox&type=firm", nil)
	get(t, ts.URL+"/services/V0.1/Firm/113849/Names", nil)

	calls := s.Calls()
	if len(calls) != 2 {
		t.Fatalf("len(calls) = %d, want 2", len(calls))
	}
	if calls[0].Path != "/services/V0.1/Search" || calls[0].Query != "q=hiscox&type=firm" {
		t.Errorf("first call = %+v", calls[0])
	}
	if calls[1].Path != "/services/V0.1/Firm/113849/Names" {
		t.Errorf("second call = %+v", calls[1])
	}
}

func TestLoadFixtureFile(t *testing.T) {
	t.Parallel()

	fixtures := `{
  "search": [
    {"type": "firm", "name": "Monzo Bank Ltd", "reference_number": "730427", "status": "Authorised"}
  ],
  "resources": {
    "Firm/730427/Names": [{"Name": "Monzo Bank Ltd"}],
    "CommonSearch/RM": [{"TradingName": "London Stock Exchange", "FirmURL": "https://register.fca.org.uk/services/V0.1/Firm/186309"}]
  }
}`
	path := filepath.Join(t.TempDir(), "fixtures.json")
	if err := os.WriteFile(path, []byte(fixtures), 0o644); err != nil {
		t.Fatalf("write fixtures: %v", err)
	}

	s := New()
	if err := s.LoadFixtureFile(path); err != nil {
		t.Fatalf("LoadFixtureFile: %v", err)
	}
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	_, body := get(t, ts.URL+"/Search?q=monzo&type=firm", nil)
	if !strings.Contains(string(body), "730427") {
		t.Errorf("search response missing fixture record: %s", body)
	}

	_, body = get(t, ts.URL+"/CommonSearch?q=RM", nil)
	if !strings.Contains(string(body), "London Stock Exchange") {
		t.Errorf("common search response missing fixture record: %s", body)
	}
}
