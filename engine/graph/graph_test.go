package graph

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"

	"github.com/sigintlabs/cdrgraph/engine/domain"
)

// fakeResult replays scripted records.
type fakeResult struct {
	records []*neo4j.Record
	pos     int
}

func (r *fakeResult) Next(_ context.Context) bool {
	if r.pos >= len(r.records) {
		return false
	}
	r.pos++
	return true
}

func (r *fakeResult) Record() *neo4j.Record {
	return r.records[r.pos-1]
}

type runCall struct {
	cypher string
	params map[string]any
}

// fakeTx records Run calls and replays scripted results in order.
type fakeTx struct {
	calls   []runCall
	results []txResult
	errs    []error
}

func (f *fakeTx) Run(_ context.Context, cypher string, params map[string]any) (txResult, error) {
	i := len(f.calls)
	f.calls = append(f.calls, runCall{cypher: cypher, params: params})
	var err error
	if i < len(f.errs) {
		err = f.errs[i]
	}
	var res txResult = &fakeResult{}
	if i < len(f.results) && f.results[i] != nil {
		res = f.results[i]
	}
	return res, err
}

func fakeStore(tx *fakeTx) *Store {
	return &Store{writeTx: func(_ context.Context, work func(tx txRunner) (any, error)) (any, error) {
		return work(tx)
	}}
}

func lsRecord(props map[string]any) *neo4j.Record {
	return &neo4j.Record{
		Keys:   []string{"ls"},
		Values: []any{dbtype.Node{Props: props}},
	}
}

func idRecord(id string) *neo4j.Record {
	return &neo4j.Record{Keys: []string{"ls.id"}, Values: []any{id}}
}

func validRecord() domain.NormalizedRecord {
	return domain.NormalizedRecord{
		Caller:    "690000001",
		Callee:    "690000002",
		Timestamp: time.Date(2023, 2, 1, 10, 15, 0, 0, time.UTC),
		Duration:  "00:01:20",
		Kind:      domain.KindCall,
		IMEI:      "350000000000001",
		Location:  "Long: 11.50 Lat: 3.80",
		Coords:    &domain.Coordinates{Longitude: 11.50, Latitude: 3.80},
	}
}

func TestWriterWrite(t *testing.T) {
	tx := &fakeTx{results: []txResult{&fakeResult{records: []*neo4j.Record{idRecord("set-1")}}}}
	w := NewWriter(fakeStore(tx))

	if err := w.Write(context.Background(), validRecord(), "set-1"); err != nil {
		t.Fatal(err)
	}
	if len(tx.calls) != 2 {
		t.Fatalf("expected existence check + write, got %d calls", len(tx.calls))
	}

	write := tx.calls[1]
	for _, fragment := range []string{
		"MERGE (caller:Subscriber {phoneNumber: $caller})",
		"MERGE (device:Device {imei: $imei})",
		"ON CREATE SET tower.longitude",
		"CREATE (event:Communication",
		"[:INITIATED]", "[:DIRECTED_TO]", "[:USED_DEVICE]", "[:ROUTED_THROUGH]", "[:PART_OF]",
	} {
		if !strings.Contains(write.cypher, fragment) {
			t.Errorf("write cypher missing %q", fragment)
		}
	}
	if write.params["caller"] != "690000001" || write.params["callee"] != "690000002" {
		t.Errorf("params = %v", write.params)
	}
	if write.params["kind"] != "CALL" {
		t.Errorf("kind = %v", write.params["kind"])
	}
	if write.params["lon"] != 11.50 || write.params["lat"] != 3.80 {
		t.Errorf("coords = %v, %v", write.params["lon"], write.params["lat"])
	}
}

func TestWriterNilCoordinates(t *testing.T) {
	tx := &fakeTx{results: []txResult{&fakeResult{records: []*neo4j.Record{idRecord("set-1")}}}}
	w := NewWriter(fakeStore(tx))

	rec := validRecord()
	rec.Coords = nil
	if err := w.Write(context.Background(), rec, "set-1"); err != nil {
		t.Fatal(err)
	}
	params := tx.calls[1].params
	if params["lon"] != nil || params["lat"] != nil {
		t.Errorf("absent coordinates should be nil params, got %v, %v", params["lon"], params["lat"])
	}
}

func TestWriterEmptyIMEISharesKey(t *testing.T) {
	tx := &fakeTx{results: []txResult{&fakeResult{records: []*neo4j.Record{idRecord("set-1")}}}}
	w := NewWriter(fakeStore(tx))

	rec := validRecord()
	rec.IMEI = ""
	if err := w.Write(context.Background(), rec, "set-1"); err != nil {
		t.Fatal(err)
	}
	if tx.calls[1].params["imei"] != "" {
		t.Errorf("device-less rows key the empty-string device, got %v", tx.calls[1].params["imei"])
	}
}

func TestWriterMissingListingSet(t *testing.T) {
	tx := &fakeTx{} // empty first result: no such listing set
	w := NewWriter(fakeStore(tx))

	err := w.Write(context.Background(), validRecord(), "nope")
	if !errors.Is(err, ErrListingSetNotFound) {
		t.Fatalf("expected ErrListingSetNotFound, got %v", err)
	}
	if len(tx.calls) != 1 {
		t.Fatalf("no write should be attempted without a container, got %d calls", len(tx.calls))
	}
}

func TestWriterEventsNeverDeduplicated(t *testing.T) {
	tx := &fakeTx{results: []txResult{
		&fakeResult{records: []*neo4j.Record{idRecord("set-1")}},
		nil,
		&fakeResult{records: []*neo4j.Record{idRecord("set-1")}},
		nil,
	}}
	w := NewWriter(fakeStore(tx))

	rec := validRecord()
	if err := w.Write(context.Background(), rec, "set-1"); err != nil {
		t.Fatal(err)
	}
	if err := w.Write(context.Background(), rec, "set-1"); err != nil {
		t.Fatal(err)
	}

	first := tx.calls[1].params["event_id"].(string)
	second := tx.calls[3].params["event_id"].(string)
	if first == second {
		t.Fatal("identical rows must still produce distinct events")
	}
	if !strings.Contains(tx.calls[1].cypher, "CREATE (event:Communication") {
		t.Fatal("events must be created, not merged")
	}
}

func TestListingSetsCreate(t *testing.T) {
	tx := &fakeTx{results: []txResult{&fakeResult{records: []*neo4j.Record{lsRecord(nil)}}}}
	svc := NewListingSets(fakeStore(tx))

	ls, err := svc.Create(context.Background(), "op-export-jan", "january dump", "analyst1")
	if err != nil {
		t.Fatal(err)
	}
	if ls.ID == "" {
		t.Fatal("listing set should get an id")
	}
	if ls.Owner != "analyst1" || ls.Name != "op-export-jan" {
		t.Fatalf("listing set = %+v", ls)
	}
	if ls.CreatedAt.IsZero() || ls.CreatedAt.Location() != time.UTC {
		t.Fatalf("createdAt should be set in UTC, got %v", ls.CreatedAt)
	}

	call := tx.calls[0]
	if !strings.Contains(call.cypher, "MERGE (u:User {username: $owner})") ||
		!strings.Contains(call.cypher, "[:OWNS]") {
		t.Errorf("create cypher missing owner link:\n%s", call.cypher)
	}
	if call.params["owner"] != "analyst1" {
		t.Errorf("params = %v", call.params)
	}
}

func TestListingSetsFind(t *testing.T) {
	created := time.Date(2023, 2, 1, 9, 0, 0, 0, time.UTC)
	tx := &fakeTx{results: []txResult{&fakeResult{records: []*neo4j.Record{lsRecord(map[string]any{
		"id":             "set-1",
		"name":           "op-export-jan",
		"owner_username": "analyst1",
		"createdAt":      created,
	})}}}}
	svc := NewListingSets(fakeStore(tx))

	ls, found, err := svc.Find(context.Background(), "set-1")
	if err != nil || !found {
		t.Fatalf("found=%v err=%v", found, err)
	}
	if ls.ID != "set-1" || ls.Owner != "analyst1" || !ls.CreatedAt.Equal(created) {
		t.Fatalf("listing set = %+v", ls)
	}
}

func TestListingSetsFindAbsent(t *testing.T) {
	tx := &fakeTx{}
	svc := NewListingSets(fakeStore(tx))

	_, found, err := svc.Find(context.Background(), "missing")
	if err != nil {
		t.Fatal(err)
	}
	if found {
		t.Fatal("absent listing set should report found=false")
	}
}
