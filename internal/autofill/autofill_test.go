package autofill

import (
	"context"
	"sync"
	"testing"
	"time"
	"unsafe"

	"github.com/evidenceledger/docgen/internal/cache"
	"github.com/evidenceledger/docgen/internal/lookup"
	"github.com/evidenceledger/docgen/internal/models"
	"github.com/evidenceledger/docgen/internal/record"
	"github.com/evidenceledger/docgen/internal/session"
)

type fakeLookups struct {
	mu      sync.Mutex
	calls   map[string]int
	person  lookup.Result
	entity  lookup.Result
	postal  map[string]lookup.Result
	started chan string
	release map[string]chan struct{}
}

func newFake() *fakeLookups {
	return &fakeLookups{
		calls:   map[string]int{},
		postal:  map[string]lookup.Result{},
		release: map[string]chan struct{}{},
	}
}

func (f *fakeLookups) count(q string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[q]
}

func (f *fakeLookups) note(q string) {
	f.mu.Lock()
	f.calls[q]++
	f.mu.Unlock()
}

func (f *fakeLookups) Person(ctx context.Context, cpf string) lookup.Result {
	f.note(cpf)
	return f.person
}

func (f *fakeLookups) Entity(ctx context.Context, cnpj string) lookup.Result {
	f.note(cnpj)
	return f.entity
}

func (f *fakeLookups) Postal(ctx context.Context, cep string) lookup.Result {
	f.note(cep)
	if f.started != nil {
		f.started <- cep
	}
	if ch, ok := f.release[cep]; ok {
		<-ch
	}
	return f.postal[cep]
}

func newStore(debounce time.Duration) *session.Store {
	m := session.NewManager(cache.New(time.Minute), time.Minute)
	m.SetDebounce(debounce)
	return m.Create()
}

func TestDecide(t *testing.T) {
	cpf := record.Principal(record.AttrTaxID)
	cep := record.Party(record.Slot2, record.AttrPostalCode)
	tests := []struct {
		key   record.Key
		value string
		want  ActionKind
		query string
	}{
		{cpf, "12345678901", ActionPerson, "12345678901"},
		{cpf, "123.456.789-01", ActionPerson, "12345678901"},
		{record.Entity(record.AttrTaxID), "12345678901234", ActionEntity, "12345678901234"},
		{cpf, "123", ActionNone, ""},
		{cpf, "1234567890123", ActionNone, ""},
		{cep, "88704-330", ActionPostal, "88704330"},
		{cep, "8870433", ActionNone, ""},
		{record.Principal(record.AttrName), "12345678901", ActionNone, ""},
		{record.Vehicle(record.AttrPlate), "88704330", ActionNone, ""},
	}
	for _, tt := range tests {
		got := Decide(tt.key, tt.value)
		if got.Kind != tt.want || got.Query != tt.query {
			t.Errorf("Decide(%s, %q) = %+v, want %s %q", tt.key, tt.value, got, tt.want, tt.query)
		}
		if got.Kind == ActionPostal && !got.Debounced {
			t.Errorf("postal lookups must be debounced")
		}
		if (got.Kind == ActionPerson || got.Kind == ActionEntity) && got.Debounced {
			t.Errorf("identifier lookups must fire immediately")
		}
	}
}

func TestFormatDate(t *testing.T) {
	for in, want := range map[string]string{
		"1980-02-01":          "01/02/1980",
		"19800201":            "01/02/1980",
		"01/02/1980":          "01/02/1980",
		"1980-02-01T00:00:00": "01/02/1980",
		"":                    "",
		"fev 1980":            "fev 1980",
	} {
		if got := FormatDate(in); got != want {
			t.Errorf("FormatDate(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestPersonDeltaPrincipal(t *testing.T) {
	rec := record.New()
	rec.Set(record.Principal(record.AttrGovID), "999")

	p := lookup.Person{Name: "joão silva", BirthDate: "1980-02-01", FatherName: "null", MotherName: "maria silva", GovID: "123"}
	d := PersonDelta(rec, record.Principal(record.AttrTaxID), p)
	rec.Apply(d)

	if rec["nomeProprietario"] != "JOÃO SILVA" {
		t.Errorf("name = %q", rec["nomeProprietario"])
	}
	if rec["dataNascimentoProprietario"] != "01/02/1980" {
		t.Errorf("birth date = %q", rec["dataNascimentoProprietario"])
	}
	if _, ok := rec["nomePaiProprietario"]; ok {
		t.Error(`father name "null" must be skipped`)
	}
	if rec["nomeMaeProprietario"] != "MARIA SILVA" {
		t.Errorf("mother name = %q", rec["nomeMaeProprietario"])
	}
	if rec["rgProprietario"] != "999" {
		t.Errorf("gov id overwritten: %q", rec["rgProprietario"])
	}
}

func TestPersonDeltaPartyOnlyName(t *testing.T) {
	p := lookup.Person{Name: "ana", BirthDate: "1990-01-01", GovID: "1"}
	d := PersonDelta(record.New(), record.Party(record.Slot3, record.AttrTaxID), p)
	if len(d) != 1 || d[record.Party(record.Slot3, record.AttrName)] != "ANA" {
		t.Fatalf("delta = %v", d)
	}
}

func TestEntityDeltaUsesSlotAddress(t *testing.T) {
	e := lookup.Entity{Name: "Transportes Sul", Address: &lookup.Address{
		Street: "Rua A", Complement: "Centro", City: "Palhoça", State: "SC", PostalCode: "88130000",
	}}
	rec := record.New()
	rec.Apply(EntityDelta(record.Party(record.Slot4, record.AttrTaxID), e))

	want := map[string]string{
		"nome4": "Transportes Sul", "endereco4": "Rua A", "complemento4": "Centro",
		"municipio4": "Palhoça", "estado4": "SC", "cep4": "88130000",
	}
	for k, v := range want {
		if rec[k] != v {
			t.Errorf("%s = %q, want %q", k, rec[k], v)
		}
	}
	if len(rec) != len(want) {
		t.Errorf("unexpected fields in %v", rec)
	}
}

func TestPostalOverwritesAddressKeepsPostalCode(t *testing.T) {
	f := newFake()
	f.postal["88704330"] = lookup.Address{Street: "Rua Nova", Complement: "Dehon", City: "Tubarão", State: "SC", PostalCode: "88704-330"}

	s := newStore(10 * time.Millisecond)
	s.Merge(record.Delta{
		record.Party(record.SlotFirst, record.AttrStreet):     "Rua Velha",
		record.Party(record.SlotFirst, record.AttrComplement): "Apto 1",
		record.Party(record.SlotFirst, record.AttrCity):       "Laguna",
		record.Party(record.SlotFirst, record.AttrState):      "RS",
	})

	c := New(f, nil)
	key := record.Party(record.SlotFirst, record.AttrPostalCode)
	ch := c.FieldChanged(context.Background(), s, key, "88704330")
	if ch.Action.Kind != ActionPostal || ch.Display != "88704-330" {
		t.Fatalf("change = %+v", ch)
	}
	s.Debouncer("postal:cep").Wait()

	rec := s.Snapshot()
	want := map[string]string{
		"endereco": "Rua Nova", "complemento": "Dehon", "municipio": "Tubarão", "estado": "SC", "cep": "88704330",
	}
	for k, v := range want {
		if rec[k] != v {
			t.Errorf("%s = %q, want %q", k, rec[k], v)
		}
	}
}

func TestPostalOnlyLatestWithinWindowApplies(t *testing.T) {
	f := newFake()
	f.postal["88704330"] = lookup.Address{Street: "Primeira"}
	f.postal["88790000"] = lookup.Address{Street: "Segunda"}

	s := newStore(50 * time.Millisecond)
	c := New(f, nil)
	key := record.Principal(record.AttrPostalCode)
	c.FieldChanged(context.Background(), s, key, "88704330")
	c.FieldChanged(context.Background(), s, key, "88790000")
	s.Debouncer("postal:cepProprietario").Wait()

	if f.count("88704330") != 0 {
		t.Error("superseded lookup was sent")
	}
	if got := s.Snapshot()["enderecoProprietario"]; got != "Segunda" {
		t.Fatalf("street = %q, want Segunda", got)
	}
}

func TestPostalIncompleteCodeCancelsPendingLookup(t *testing.T) {
	f := newFake()
	f.postal["88704330"] = lookup.Address{Street: "Primeira"}

	s := newStore(50 * time.Millisecond)
	c := New(f, nil)
	key := record.Principal(record.AttrPostalCode)
	c.FieldChanged(context.Background(), s, key, "88704330")
	ch := c.FieldChanged(context.Background(), s, key, "8870433")
	s.Debouncer("postal:cepProprietario").Wait()

	if ch.Action.Kind != ActionNone {
		t.Errorf("action = %s, want none", ch.Action.Kind)
	}
	if f.count("88704330") != 0 {
		t.Error("lookup of the previous postal code was sent")
	}
	snap := s.Snapshot()
	if snap["cepProprietario"] != "8870433" {
		t.Errorf("cep = %q, want 8870433", snap["cepProprietario"])
	}
	if got := snap["enderecoProprietario"]; got != "" {
		t.Fatalf("street = %q, want empty", got)
	}
}

func TestPostalAnswerForReplacedCodeIsDiscarded(t *testing.T) {
	f := newFake()
	f.postal["88704330"] = lookup.Address{Street: "Primeira"}
	f.started = make(chan string, 1)
	release := make(chan struct{})
	f.release["88704330"] = release

	s := newStore(5 * time.Millisecond)
	c := New(f, nil)
	key := record.Principal(record.AttrPostalCode)

	c.FieldChanged(context.Background(), s, key, "88704330")
	<-f.started
	// Written directly, without going through the debouncer.
	s.Merge(record.Delta{key: "88704"})
	close(release)
	s.Debouncer("postal:cepProprietario").Wait()

	if got := s.Snapshot()["enderecoProprietario"]; got != "" {
		t.Fatalf("street = %q, want empty", got)
	}
}

func TestPostalLateAnswerIsDiscarded(t *testing.T) {
	f := newFake()
	f.postal["88704330"] = lookup.Address{Street: "Primeira"}
	f.postal["88790000"] = lookup.Address{Street: "Segunda"}
	f.started = make(chan string, 2)
	release := make(chan struct{})
	f.release["88704330"] = release

	s := newStore(5 * time.Millisecond)
	c := New(f, nil)
	key := record.Principal(record.AttrPostalCode)

	c.FieldChanged(context.Background(), s, key, "88704330")
	<-f.started // first lookup in flight

	c.FieldChanged(context.Background(), s, key, "88790000")
	<-f.started // second lookup done or about to be
	close(release)
	s.Debouncer("postal:cepProprietario").Wait()

	if got := s.Snapshot()["enderecoProprietario"]; got != "Segunda" {
		t.Fatalf("street = %q, want Segunda", got)
	}
}

func TestIdentifierNotFoundAdvisesOnce(t *testing.T) {
	f := newFake()
	f.person = lookup.NotFound{}

	s := newStore(time.Millisecond)
	c := New(f, nil)
	c.FieldChanged(context.Background(), s, record.Principal(record.AttrTaxID), "52998224725")
	c.FieldChanged(context.Background(), s, record.Party(record.SlotFirst, record.AttrTaxID), "11144477735")
	c.Wait()

	if adv := s.TakeAdvisories(); len(adv) != 1 || adv[0] != AdvisoryLookupUnavailable {
		t.Fatalf("advisories = %v", adv)
	}
}

func TestIdentifierLookupMergesIntoLatestState(t *testing.T) {
	f := newFake()
	f.person = lookup.Person{Name: "joão"}

	s := newStore(time.Millisecond)
	c := New(f, nil)
	ch := c.FieldChanged(context.Background(), s, record.Principal(record.AttrTaxID), "529.982.247-25")
	if ch.Stored != "52998224725" || ch.Display != "529.982.247-25" {
		t.Fatalf("change = %+v", ch)
	}
	s.Merge(record.Delta{record.Vehicle(record.AttrPlate): "ABC1D23"})
	c.Wait()

	rec := s.Snapshot()
	if rec["nomeProprietario"] != "JOÃO" || rec["placa"] != "ABC1D23" {
		t.Fatalf("record = %v", rec)
	}
}

func TestFailedLookupAppliesNothing(t *testing.T) {
	f := newFake()
	f.entity = lookup.Failure{Status: 500}

	s := newStore(time.Millisecond)
	c := New(f, nil)
	c.FieldChanged(context.Background(), s, record.Entity(record.AttrTaxID), "11222333000181")
	c.Wait()

	rec := s.Snapshot()
	if len(rec) != 1 || len(s.TakeAdvisories()) != 0 {
		t.Fatalf("record = %v", rec)
	}
}

type fakeContacts struct {
	mu      sync.Mutex
	queries []string
}

func (f *fakeContacts) SearchContacts(q string, limit int) ([]models.Contact, error) {
	f.mu.Lock()
	f.queries = append(f.queries, q)
	f.mu.Unlock()
	return []models.Contact{{Code: "12345", Identity: models.Identity{Nome: "ANA " + q}}}, nil
}

func TestSearchContactsSupersede(t *testing.T) {
	fc := &fakeContacts{}
	s := newStore(30 * time.Millisecond)
	c := New(newFake(), fc)

	type out struct {
		n          int
		superseded bool
	}
	first := make(chan out, 1)
	go func() {
		list, sup, _ := c.SearchContacts(context.Background(), s, "an", 10)
		first <- out{len(list), sup}
	}()
	time.Sleep(5 * time.Millisecond)

	list, sup, err := c.SearchContacts(context.Background(), s, "ana", 10)
	if err != nil || sup || len(list) != 1 {
		t.Fatalf("second search: %v %v %v", list, sup, err)
	}
	if o := <-first; !o.superseded || o.n != 0 {
		t.Fatalf("first search = %+v, want superseded", o)
	}
	if len(fc.queries) != 1 || fc.queries[0] != "ana" {
		t.Fatalf("queries = %v", fc.queries)
	}
}

func TestSearchContactsOwnsQuery(t *testing.T) {
	fc := &fakeContacts{}
	c := New(newFake(), fc)

	// Request values point into a buffer reused once the handler returns.
	buf := []byte("maria")
	query := unsafe.String(&buf[0], len(buf))
	if _, _, err := c.SearchContacts(context.Background(), newStore(time.Millisecond), query, 10); err != nil {
		t.Fatal(err)
	}
	if len(fc.queries) != 1 {
		t.Fatalf("queries = %v", fc.queries)
	}
	if unsafe.StringData(fc.queries[0]) == &buf[0] {
		t.Fatal("search job reads the caller's buffer")
	}
	copy(buf, "xxxxx")
	if fc.queries[0] != "maria" {
		t.Fatalf("query = %q after buffer reuse", fc.queries[0])
	}
}

func TestSearchContactsShortQuery(t *testing.T) {
	fc := &fakeContacts{}
	c := New(newFake(), fc)
	list, sup, err := c.SearchContacts(context.Background(), newStore(time.Millisecond), "a", 10)
	if list != nil || sup || err != nil || len(fc.queries) != 0 {
		t.Fatal("short query should not search")
	}
}
