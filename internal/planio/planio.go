// Package planio reads and writes the external wire formats a contact plan
// can arrive in: the line-oriented grammar, ION-style contact/range pairs,
// CSV, and a JSON contact array, plus the node-mapping JSON used to assign
// stable integer node numbers to external node identifiers.
package planio

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"repram/internal/engine"
	"repram/internal/message"
	"repram/internal/netplan"
)

// LoadContactPlanFile reads a contact plan from path, picking the parser by
// file extension: .ion for the ION-style contact/range grammar, .csv for
// CSV, .json for a JSON contact array, and anything else (.txt, .plan, no
// extension) for the line-oriented grammar.
func LoadContactPlanFile(path string) (contacts []netplan.Contact, loop bool, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, false, fmt.Errorf("planio: open %s: %w", path, err)
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".ion":
		contacts, err = ParseIONPlan(f)
	case ".csv":
		contacts, err = ParseCSV(f)
	case ".json":
		contacts, err = ParseJSONContacts(f)
	default:
		contacts, loop, err = ParseLineGrammar(f)
	}
	if err != nil {
		return nil, false, err
	}
	return contacts, loop, nil
}

// ConfigError reports a malformed external input read by this package: a
// bad contact line or field value, a CSV header lacking the required
// columns, or a duplicate node-mapping entry. It is always fatal at setup.
type ConfigError struct {
	Msg string
}

func (e *ConfigError) Error() string { return "config: " + e.Msg }

func configErrorf(format string, args ...any) error {
	return &ConfigError{Msg: fmt.Sprintf(format, args...)}
}

// lightSpeed is the constant (metres/second) the ION-style "range" line
// expresses light-seconds against.
const lightSpeed = 299_792_458

// parseBandwidth accepts a plain bits/s number or one suffixed with
// mbit/kbit/gbit (e.g. "10mbit" == 10_000_000).
func parseBandwidth(s string) (float64, error) {
	lower := strings.ToLower(s)
	suffixes := map[string]float64{"gbit": 1e9, "mbit": 1e6, "kbit": 1e3}
	for suf, mult := range suffixes {
		if strings.HasSuffix(lower, suf) {
			v, err := strconv.ParseFloat(strings.TrimSuffix(lower, suf), 64)
			if err != nil {
				return 0, configErrorf("bad bandwidth %q: %v", s, err)
			}
			return v * mult, nil
		}
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, configErrorf("bad bandwidth %q: %v", s, err)
	}
	return v, nil
}

func formatBandwidth(bw float64) string {
	return strconv.FormatFloat(bw, 'g', -1, 64)
}

func parseNodeID(s string) (message.NodeID, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, configErrorf("bad node id %q: %v", s, err)
	}
	return message.NodeID(n), nil
}

func parseTime(s string) (engine.Time, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, configErrorf("bad time value %q: %v", s, err)
	}
	return engine.Time(v), nil
}

// ParseLineGrammar parses the line-oriented contact-plan grammar:
//
//	s loop {0|1}
//	a contact {start} {end} {n1} {n2} {bw} {loss} {delay} {jitter}
//	a fixed {n1} {n2} {bw} {loss} {delay} {jitter}
//	# or // comment lines, blank lines ignored
func ParseLineGrammar(r io.Reader) (contacts []netplan.Contact, loop bool, err error) {
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "//") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		switch {
		case fields[0] == "s" && len(fields) >= 3 && fields[1] == "loop":
			loop = fields[2] == "1"
		case fields[0] == "a" && len(fields) >= 2 && fields[1] == "contact":
			if len(fields) != 10 {
				return nil, false, configErrorf("line %d: 'a contact' wants 8 fields, got %d", lineNo, len(fields)-2)
			}
			c, perr := parseContactFields(fields[2:], false)
			if perr != nil {
				return nil, false, fmt.Errorf("line %d: %w", lineNo, perr)
			}
			contacts = append(contacts, c)
		case fields[0] == "a" && len(fields) >= 2 && fields[1] == "fixed":
			if len(fields) != 8 {
				return nil, false, configErrorf("line %d: 'a fixed' wants 6 fields, got %d", lineNo, len(fields)-2)
			}
			c, perr := parseContactFields(append([]string{"0"}, fields[2:]...), true)
			if perr != nil {
				return nil, false, fmt.Errorf("line %d: %w", lineNo, perr)
			}
			contacts = append(contacts, c)
		default:
			return nil, false, configErrorf("line %d: unrecognised directive %q", lineNo, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, false, err
	}
	return contacts, loop, nil
}

// parseContactFields parses {start} {n1} {n2} {bw} {loss} {delay} {jitter}
// when fixed, or {start} {end} {n1} {n2} {bw} {loss} {delay} {jitter}
// otherwise, fields[0] having already absorbed the placeholder "0" start
// for fixed contacts.
func parseContactFields(fields []string, fixed bool) (netplan.Contact, error) {
	var start, end engine.Time
	var rest []string
	var err error
	if fixed {
		rest = fields[1:]
		end = -1
	} else {
		start, err = parseTime(fields[0])
		if err != nil {
			return netplan.Contact{}, err
		}
		end, err = parseTime(fields[1])
		if err != nil {
			return netplan.Contact{}, err
		}
		rest = fields[2:]
	}
	if len(rest) != 6 {
		return netplan.Contact{}, configErrorf("expected 6 trailing fields, got %d", len(rest))
	}
	a, err := parseNodeID(rest[0])
	if err != nil {
		return netplan.Contact{}, err
	}
	b, err := parseNodeID(rest[1])
	if err != nil {
		return netplan.Contact{}, err
	}
	bw, err := parseBandwidth(rest[2])
	if err != nil {
		return netplan.Contact{}, err
	}
	loss, err := strconv.ParseFloat(rest[3], 64)
	if err != nil {
		return netplan.Contact{}, configErrorf("bad loss %q: %v", rest[3], err)
	}
	delay, err := parseTime(rest[4])
	if err != nil {
		return netplan.Contact{}, err
	}
	jitter, err := parseTime(rest[5])
	if err != nil {
		return netplan.Contact{}, err
	}
	return netplan.Contact{Start: start, End: end, A: a, B: b, BW: bw, Loss: loss, Delay: delay, Jitter: jitter}, nil
}

// WriteLineGrammar serialises contacts back into the line-oriented grammar,
// round-tripping with ParseLineGrammar.
func WriteLineGrammar(w io.Writer, contacts []netplan.Contact, loop bool) error {
	bw := bufio.NewWriter(w)
	if loop {
		if _, err := fmt.Fprintln(bw, "s loop 1"); err != nil {
			return err
		}
	}
	for _, c := range contacts {
		var err error
		if c.Fixed() {
			_, err = fmt.Fprintf(bw, "a fixed %d %d %s %g %g %g\n",
				c.A, c.B, formatBandwidth(c.BW), c.Loss, float64(c.Delay), float64(c.Jitter))
		} else {
			_, err = fmt.Fprintf(bw, "a contact %g %g %d %d %s %g %g %g\n",
				float64(c.Start), float64(c.End), c.A, c.B, formatBandwidth(c.BW), c.Loss, float64(c.Delay), float64(c.Jitter))
		}
		if err != nil {
			return err
		}
	}
	return bw.Flush()
}

type ionKey struct {
	start, end engine.Time
	a, b       message.NodeID
}

// ParseIONPlan parses the ION-style grammar: "a contact {t_start} {t_end}
// {n1} {n2} {bw}" and "a range {t_start} {t_end} {n1} {n2} {light_seconds}"
// lines for the same (t_start, t_end, n1, n2) key are merged into a single
// Contact carrying both bandwidth and propagation delay.
func ParseIONPlan(r io.Reader) ([]netplan.Contact, error) {
	order := make([]ionKey, 0)
	byKey := make(map[ionKey]*netplan.Contact)

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "//") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 7 || fields[0] != "a" {
			return nil, configErrorf("line %d: expected 'a contact|range ...', got %q", lineNo, line)
		}
		kind := fields[1]
		start, err := parseTime(fields[2])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		end, err := parseTime(fields[3])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		a, err := parseNodeID(fields[4])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		b, err := parseNodeID(fields[5])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		val, err := strconv.ParseFloat(fields[6], 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: bad value %q: %w", lineNo, fields[6], err)
		}

		k := ionKey{start, end, a, b}
		c, ok := byKey[k]
		if !ok {
			c = &netplan.Contact{Start: start, End: end, A: a, B: b}
			byKey[k] = c
			order = append(order, k)
		}
		switch kind {
		case "contact":
			c.BW = val
		case "range":
			c.Delay = lightSecondsToDelay(val)
		default:
			return nil, configErrorf("line %d: unrecognised ION directive %q", lineNo, kind)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	out := make([]netplan.Contact, 0, len(order))
	for _, k := range order {
		out = append(out, *byKey[k])
	}
	return out, nil
}

// lightSecondsToDelay converts an ION "range" value (light-seconds) to a
// propagation delay: the distance in metres, divided back down by the
// speed of light, is the light-seconds value itself — this function keeps
// the two steps explicit rather than collapsing the identity away.
func lightSecondsToDelay(lightSeconds float64) engine.Time {
	distanceMetres := lightSeconds * lightSpeed
	return engine.Time(distanceMetres / lightSpeed)
}

var csvHeaderAliases = map[string][]string{
	"start": {"start_time", "start"},
	"end":   {"end_time", "end"},
	"a":     {"node1", "src"},
	"b":     {"node2", "dst"},
	"bw":    {"bandwidth", "bw"},
	"loss":  {"loss"},
	"delay": {"delay"},
	"jitter": {"jitter"},
}

func findColumn(header []string, aliases []string) int {
	for i, h := range header {
		hl := strings.ToLower(strings.TrimSpace(h))
		for _, alias := range aliases {
			if hl == alias {
				return i
			}
		}
	}
	return -1
}

// ParseCSV parses a CSV contact file. The header must name the start/end
// and node pair columns (with the aliases listed in spec §6); bandwidth,
// loss, delay, and jitter are optional and default to 0. end_time < 0
// means fixed.
func ParseCSV(r io.Reader) ([]netplan.Contact, error) {
	cr := csv.NewReader(r)
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("planio: read csv: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}
	header := records[0]
	cols := make(map[string]int, len(csvHeaderAliases))
	for key, aliases := range csvHeaderAliases {
		cols[key] = findColumn(header, aliases)
	}
	if cols["start"] < 0 || cols["end"] < 0 || cols["a"] < 0 || cols["b"] < 0 {
		return nil, configErrorf("csv: missing required start/end/node columns")
	}

	var out []netplan.Contact
	for i, row := range records[1:] {
		get := func(key string) string {
			idx := cols[key]
			if idx < 0 || idx >= len(row) {
				return ""
			}
			return row[idx]
		}
		start, err := parseTime(get("start"))
		if err != nil {
			return nil, fmt.Errorf("csv row %d: %w", i+2, err)
		}
		end, err := parseTime(get("end"))
		if err != nil {
			return nil, fmt.Errorf("csv row %d: %w", i+2, err)
		}
		a, err := parseNodeID(get("a"))
		if err != nil {
			return nil, fmt.Errorf("csv row %d: %w", i+2, err)
		}
		b, err := parseNodeID(get("b"))
		if err != nil {
			return nil, fmt.Errorf("csv row %d: %w", i+2, err)
		}
		var bw, loss, delay, jitter float64
		if s := get("bw"); s != "" {
			if bw, err = parseBandwidth(s); err != nil {
				return nil, fmt.Errorf("csv row %d: %w", i+2, err)
			}
		}
		if s := get("loss"); s != "" {
			loss, _ = strconv.ParseFloat(s, 64)
		}
		if s := get("delay"); s != "" {
			delay, _ = strconv.ParseFloat(s, 64)
		}
		if s := get("jitter"); s != "" {
			jitter, _ = strconv.ParseFloat(s, 64)
		}
		out = append(out, netplan.Contact{
			Start: start, End: end, A: a, B: b,
			BW: bw, Loss: loss, Delay: engine.Time(delay), Jitter: engine.Time(jitter),
		})
	}
	return out, nil
}

// WriteCSV serialises contacts to CSV, round-tripping with ParseCSV.
func WriteCSV(w io.Writer, contacts []netplan.Contact) error {
	cw := csv.NewWriter(w)
	header := []string{"start_time", "end_time", "node1", "node2", "bandwidth", "loss", "delay", "jitter"}
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, c := range contacts {
		row := []string{
			strconv.FormatFloat(float64(c.Start), 'g', -1, 64),
			strconv.FormatFloat(float64(c.End), 'g', -1, 64),
			strconv.Itoa(int(c.A)),
			strconv.Itoa(int(c.B)),
			formatBandwidth(c.BW),
			strconv.FormatFloat(c.Loss, 'g', -1, 64),
			strconv.FormatFloat(float64(c.Delay), 'g', -1, 64),
			strconv.FormatFloat(float64(c.Jitter), 'g', -1, 64),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// jsonContact is the wire shape of one element of a JSON contact array.
type jsonContact struct {
	Start     float64 `json:"start"`
	End       float64 `json:"end"`
	A         int     `json:"a"`
	B         int     `json:"b"`
	BW        float64 `json:"bw"`
	Loss      float64 `json:"loss"`
	Delay     float64 `json:"delay"`
	Jitter    float64 `json:"jitter"`
	Symmetric bool    `json:"symmetric"`
}

// ParseJSONContacts parses a JSON array of contact objects. An object with
// "symmetric": true expands into two contacts, one for each direction.
func ParseJSONContacts(r io.Reader) ([]netplan.Contact, error) {
	var raw []jsonContact
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("planio: decode json contacts: %w", err)
	}
	out := make([]netplan.Contact, 0, len(raw))
	for _, jc := range raw {
		c := netplan.Contact{
			Start: engine.Time(jc.Start), End: engine.Time(jc.End),
			A: message.NodeID(jc.A), B: message.NodeID(jc.B),
			BW: jc.BW, Loss: jc.Loss, Delay: engine.Time(jc.Delay), Jitter: engine.Time(jc.Jitter),
		}
		out = append(out, c)
		if jc.Symmetric {
			mirrored := c
			mirrored.A, mirrored.B = c.B, c.A
			out = append(out, mirrored)
		}
	}
	return out, nil
}

// WriteJSONContacts serialises contacts as a JSON array, one object per
// contact (symmetric pairs are written out explicitly rather than folded
// back into a single symmetric:true entry).
func WriteJSONContacts(w io.Writer, contacts []netplan.Contact) error {
	out := make([]jsonContact, 0, len(contacts))
	for _, c := range contacts {
		out = append(out, jsonContact{
			Start: float64(c.Start), End: float64(c.End),
			A: int(c.A), B: int(c.B),
			BW: c.BW, Loss: c.Loss, Delay: float64(c.Delay), Jitter: float64(c.Jitter),
		})
	}
	enc := json.NewEncoder(w)
	return enc.Encode(out)
}

// NodeMapping is one entry of the node-mapping JSON: an external node
// identifier (an "ipn:N.S" string or an opaque one) assigned a stable
// integer node number in encounter order.
type NodeMapping struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	NodeID     string `json:"node_id"`
	NodeNumber int    `json:"node_number"`
}

// ParseNodeMapping parses the node-mapping JSON and assigns each entry a
// node_number in file order. A repeated id is a ConfigError.
func ParseNodeMapping(r io.Reader) ([]NodeMapping, error) {
	var raw []struct {
		ID     string `json:"id"`
		Name   string `json:"name"`
		NodeID string `json:"node_id"`
	}
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("planio: decode node mapping: %w", err)
	}
	seen := make(map[string]bool, len(raw))
	out := make([]NodeMapping, 0, len(raw))
	for i, e := range raw {
		if seen[e.ID] {
			return nil, configErrorf("duplicate node id %q in mapping", e.ID)
		}
		seen[e.ID] = true
		out = append(out, NodeMapping{ID: e.ID, Name: e.Name, NodeID: e.NodeID, NodeNumber: i})
	}
	return out, nil
}
