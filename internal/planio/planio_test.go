package planio

import (
	"bytes"
	"strings"
	"testing"

	"repram/internal/netplan"
)

func TestParseLineGrammarBasic(t *testing.T) {
	input := `
# a comment
s loop 1
a contact 0 50 0 1 10mbit 0.01 0.5 0.1
a fixed 1 2 1kbit 0 0 0
// another comment
`
	contacts, loop, err := ParseLineGrammar(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ParseLineGrammar: %v", err)
	}
	if !loop {
		t.Fatal("loop = false, want true")
	}
	if len(contacts) != 2 {
		t.Fatalf("len(contacts) = %d, want 2", len(contacts))
	}
	c0 := contacts[0]
	if c0.Start != 0 || c0.End != 50 || c0.A != 0 || c0.B != 1 || c0.BW != 10_000_000 {
		t.Fatalf("contacts[0] = %+v, unexpected", c0)
	}
	c1 := contacts[1]
	if !c1.Fixed() || c1.A != 1 || c1.B != 2 || c1.BW != 1000 {
		t.Fatalf("contacts[1] = %+v, want fixed 1-2 at 1000bps", c1)
	}
}

func TestLineGrammarRoundTrip(t *testing.T) {
	contacts := []netplan.Contact{
		{Start: 0, End: 100, A: 0, B: 1, BW: 5_000_000, Loss: 0.02, Delay: 1, Jitter: 0.1},
		{Start: 0, End: -1, A: 2, B: 3, BW: 2_000, Loss: 0, Delay: 0, Jitter: 0},
	}
	var buf bytes.Buffer
	if err := WriteLineGrammar(&buf, contacts, true); err != nil {
		t.Fatalf("WriteLineGrammar: %v", err)
	}
	got, loop, err := ParseLineGrammar(&buf)
	if err != nil {
		t.Fatalf("ParseLineGrammar: %v", err)
	}
	if !loop {
		t.Fatal("loop = false, want true")
	}
	if len(got) != len(contacts) {
		t.Fatalf("len(got) = %d, want %d", len(got), len(contacts))
	}
	for i, c := range contacts {
		if got[i] != c {
			t.Fatalf("contact %d round-trip mismatch: got %+v, want %+v", i, got[i], c)
		}
	}
}

func TestParseLineGrammarRejectsMalformed(t *testing.T) {
	if _, _, err := ParseLineGrammar(strings.NewReader("a contact 0 1 2\n")); err == nil {
		t.Fatal("expected an error for a short 'a contact' line")
	}
	_, _, err := ParseLineGrammar(strings.NewReader("a bogus 1 2 3\n"))
	if err == nil {
		t.Fatal("expected an error for an unrecognised directive")
	}
	if _, ok := err.(*ConfigError); !ok {
		t.Fatalf("expected a *ConfigError, got %T: %v", err, err)
	}
}

func TestParseIONPlanMergesContactAndRange(t *testing.T) {
	input := `
a contact 0 100 0 1 9600
a range 0 100 0 1 1
`
	contacts, err := ParseIONPlan(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ParseIONPlan: %v", err)
	}
	if len(contacts) != 1 {
		t.Fatalf("len(contacts) = %d, want 1 (merged)", len(contacts))
	}
	c := contacts[0]
	if c.BW != 9600 {
		t.Fatalf("BW = %v, want 9600", c.BW)
	}
	if c.Delay != 1 {
		t.Fatalf("Delay = %v, want 1 (light-second identity)", c.Delay)
	}
}

func TestParseCSV(t *testing.T) {
	input := "start_time,end_time,node1,node2,bandwidth,loss,delay,jitter\n" +
		"0,60,0,1,1mbit,0.01,0.2,0\n" +
		"0,-1,1,2,500,0,0,0\n"
	contacts, err := ParseCSV(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ParseCSV: %v", err)
	}
	if len(contacts) != 2 {
		t.Fatalf("len(contacts) = %d, want 2", len(contacts))
	}
	if contacts[0].BW != 1_000_000 {
		t.Fatalf("BW = %v, want 1e6", contacts[0].BW)
	}
	if !contacts[1].Fixed() {
		t.Fatal("contacts[1] should be fixed (end_time < 0)")
	}
}

func TestCSVRoundTrip(t *testing.T) {
	contacts := []netplan.Contact{
		{Start: 0, End: 30, A: 4, B: 5, BW: 100, Loss: 0.1, Delay: 2, Jitter: 0.5},
	}
	var buf bytes.Buffer
	if err := WriteCSV(&buf, contacts); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}
	got, err := ParseCSV(&buf)
	if err != nil {
		t.Fatalf("ParseCSV: %v", err)
	}
	if len(got) != 1 || got[0] != contacts[0] {
		t.Fatalf("got %+v, want %+v", got, contacts)
	}
}

func TestParseJSONContactsSymmetric(t *testing.T) {
	input := `[{"start":0,"end":10,"a":0,"b":1,"bw":100,"symmetric":true}]`
	contacts, err := ParseJSONContacts(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ParseJSONContacts: %v", err)
	}
	if len(contacts) != 2 {
		t.Fatalf("len(contacts) = %d, want 2 (mirrored)", len(contacts))
	}
	if contacts[0].A != 0 || contacts[0].B != 1 {
		t.Fatalf("contacts[0] = %+v, want A=0 B=1", contacts[0])
	}
	if contacts[1].A != 1 || contacts[1].B != 0 {
		t.Fatalf("contacts[1] = %+v, want mirrored A=1 B=0", contacts[1])
	}
}

func TestJSONContactsRoundTrip(t *testing.T) {
	contacts := []netplan.Contact{
		{Start: 1, End: 2, A: 0, B: 1, BW: 10, Loss: 0, Delay: 0, Jitter: 0},
	}
	var buf bytes.Buffer
	if err := WriteJSONContacts(&buf, contacts); err != nil {
		t.Fatalf("WriteJSONContacts: %v", err)
	}
	got, err := ParseJSONContacts(&buf)
	if err != nil {
		t.Fatalf("ParseJSONContacts: %v", err)
	}
	if len(got) != 1 || got[0] != contacts[0] {
		t.Fatalf("got %+v, want %+v", got, contacts)
	}
}

func TestParseNodeMapping(t *testing.T) {
	input := `[
		{"id": "a", "name": "Alpha", "node_id": "ipn:1.1"},
		{"id": "b", "name": "Bravo", "node_id": "ipn:2.1"}
	]`
	mapping, err := ParseNodeMapping(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ParseNodeMapping: %v", err)
	}
	if len(mapping) != 2 {
		t.Fatalf("len(mapping) = %d, want 2", len(mapping))
	}
	if mapping[0].NodeNumber != 0 || mapping[1].NodeNumber != 1 {
		t.Fatalf("node numbers = %d, %d, want 0, 1", mapping[0].NodeNumber, mapping[1].NodeNumber)
	}
}

func TestParseNodeMappingRejectsDuplicates(t *testing.T) {
	input := `[{"id": "a", "node_id": "ipn:1.1"}, {"id": "a", "node_id": "ipn:2.1"}]`
	_, err := ParseNodeMapping(strings.NewReader(input))
	if err == nil {
		t.Fatal("expected an error for a duplicate node id")
	}
}
