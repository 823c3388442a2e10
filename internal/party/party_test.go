package party

import (
	"errors"
	"testing"

	"github.com/evidenceledger/docgen/internal/models"
	"github.com/evidenceledger/docgen/internal/record"
	"github.com/google/go-cmp/cmp"
)

func TestSetCountClamps(t *testing.T) {
	tests := []struct{ in, want int }{
		{-3, 1}, {0, 1}, {1, 1}, {3, 3}, {5, 5}, {9, 5},
	}
	for _, tt := range tests {
		a := NewAccumulator()
		if got := a.SetCount(tt.in); got != tt.want || a.Count() != tt.want {
			t.Errorf("SetCount(%d) = %d (Count %d), want %d", tt.in, got, a.Count(), tt.want)
		}
	}
}

func TestZeroValueHasOneParty(t *testing.T) {
	var a Accumulator
	if a.Count() != 1 {
		t.Fatalf("Count() = %d, want 1", a.Count())
	}
}

func TestUpdatePartnerMaterializes(t *testing.T) {
	a := NewAccumulator()
	a.SetCount(3)

	if err := a.UpdatePartner(5, record.AttrName, "X"); err != nil {
		t.Fatal(err)
	}

	p, ok := a.Partner(5)
	if !ok {
		t.Fatal("partner 5 not materialized")
	}
	if p.Nome != "X" || p.Nacionalidade != DefaultNationality {
		t.Errorf("partner 5 = %+v", p)
	}
	if gap, _ := a.Partner(2); gap.Nacionalidade != DefaultNationality {
		t.Errorf("gap partner = %+v, want defaults", gap)
	}
	if a.Count() != 3 {
		t.Errorf("count changed to %d", a.Count())
	}
}

func TestUpdatePartnerMergesSingleField(t *testing.T) {
	a := NewAccumulator()
	_ = a.UpdatePartner(0, record.AttrName, "ANA")
	_ = a.UpdatePartner(0, record.AttrTaxID, "529.982.247-25")
	_ = a.UpdatePartner(0, record.AttrNationality, "portuguesa")

	want := models.Partner{Nome: "ANA", CPF: "52998224725", Nacionalidade: "portuguesa"}
	got, _ := a.Partner(0)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("partner (-want +got):\n%s", diff)
	}
}

func TestUpdatePartnerErrors(t *testing.T) {
	a := NewAccumulator()
	if err := a.UpdatePartner(-1, record.AttrName, "X"); err == nil {
		t.Error("negative index accepted")
	}
	if err := a.UpdatePartner(0, record.AttrPlate, "X"); err == nil {
		t.Error("vehicle attribute accepted as partner field")
	}
}

func TestUpdatePartnerIndexBound(t *testing.T) {
	a := NewAccumulator()
	a.SetCount(3)
	if err := a.UpdatePartner(MaxParties+1, record.AttrName, "X"); err == nil {
		t.Error("index past the last slot accepted")
	}
	if err := a.UpdatePartner(1_000_000, record.AttrName, "X"); err == nil {
		t.Error("huge index accepted")
	}
	if n := len(a.Partners()); n != 0 {
		t.Fatalf("%d partners materialized by rejected writes", n)
	}
}

func TestSetCountKeepsData(t *testing.T) {
	a := NewAccumulator()
	a.SetCount(4)
	_ = a.UpdatePartner(3, record.AttrName, "QUARTO")
	a.SetCount(2)
	a.SetCount(4)
	if p, _ := a.Partner(3); p.Nome != "QUARTO" {
		t.Fatalf("partner 3 lost after shrinking count: %+v", p)
	}
}

func TestImportFromCompany(t *testing.T) {
	c := &models.Company{
		ID:   "12345678",
		Nome: "TRANSPORTES SUL LTDA",
		CNPJ: "11.222.333/0001-81",
		Partners: []models.Partner{
			{Nome: "ANA", CPF: "529.982.247-25", Municipio: "Palhoça", Estado: "SC"},
			{Nome: "BRUNO", CPF: "111.444.777-35"},
			{Nome: "CARLA"},
		},
	}

	d := ImportFromCompany(c)
	r := record.New()
	r.Apply(d)

	checks := map[string]string{
		"nome":         "ANA",
		"cpf":          "52998224725",
		"municipio":    "Palhoça",
		"nome2":        "BRUNO",
		"cpf2":         "11144477735",
		"nome3":        "CARLA",
		"nomeEmpresa":  "TRANSPORTES SUL LTDA",
		"cnpjEmpresa":  "11222333000181",
		"isEntityMode": "true",
	}
	for name, want := range checks {
		if r[name] != want {
			t.Errorf("%s = %q, want %q", name, r[name], want)
		}
	}
	if _, ok := r["nome1"]; ok {
		t.Error("slot 1 must not be written by a company import")
	}
}

func TestImportFromCompanyStopsAtLastSlot(t *testing.T) {
	c := &models.Company{}
	for i := 0; i < 7; i++ {
		c.Partners = append(c.Partners, models.Partner{Nome: "P"})
	}
	r := record.New()
	r.Apply(ImportFromCompany(c))
	if r["nome5"] != "P" {
		t.Error("partner 4 should land in slot 5")
	}
}

type fakeFinder map[string]*models.Contact

func (f fakeFinder) GetContact(code string) (*models.Contact, error) {
	c, ok := f[code]
	if !ok {
		return nil, ErrContactNotFound
	}
	return c, nil
}

type brokenFinder struct{}

func (brokenFinder) GetContact(string) (*models.Contact, error) {
	return nil, errors.New("database closed")
}

func TestImportContactByCode(t *testing.T) {
	f := fakeFinder{"12345": {Code: "12345", Identity: models.Identity{Nome: "DORA", CPF: "529.982.247-25"}}}

	d, err := ImportContactByCode(f, "12345", record.Slot2)
	if err != nil {
		t.Fatal(err)
	}
	r := record.New()
	r.Apply(d)
	if r["nome2"] != "DORA" || r["cpf2"] != "52998224725" {
		t.Errorf("record after import = %v", r)
	}

	for _, code := range []string{"1234", "123456", "99999"} {
		d, err := ImportContactByCode(f, code, record.SlotFirst)
		if err != nil || len(d) != 0 {
			t.Errorf("code %q: delta %v, err %v; want empty no-op", code, d, err)
		}
	}

	if _, err := ImportContactByCode(brokenFinder{}, "12345", record.SlotFirst); err == nil {
		t.Error("finder failure not reported")
	}
}
