package protocol

import (
	"bufio"
	"bytes"
	"strings"
	"testing"
	"unicode"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	cases := []struct{ name, value string }{
		{"domain", "example.org"},
		{"log_id", "abc-123"},
		{"sig.a", "rsa-sha256"},
		{"weird name", "has a % percent and spaces"},
		{"n", "note=with=equals"},
	}
	for _, c := range cases {
		line, _ := EncodeLine(c.name, c.value)
		name, value, ok := DecodeLine(line)
		if !ok {
			t.Fatalf("DecodeLine(%q): not ok", line)
		}
		if name != c.name || value != c.value {
			t.Errorf("round trip mismatch: got (%q, %q), want (%q, %q)", name, value, c.name, c.value)
		}
	}
}

func TestEncodeValueKeepsSpaceLiteral(t *testing.T) {
	enc, _ := EncodeValue("From:\"Alice\" <alice@example.org>")
	if !strings.Contains(enc, " ") {
		t.Fatalf("expected literal space preserved in %q", enc)
	}
}

func TestEncodeValuePercentAndHighByte(t *testing.T) {
	enc, replaced := EncodeValue("100% done")
	if !strings.Contains(enc, "%25") {
		t.Fatalf("expected %% to be percent-encoded, got %q", enc)
	}
	if len(replaced) != 0 {
		t.Fatalf("expected no replaced runes, got %v", replaced)
	}
}

func TestEncodeValueNonOctetReplaced(t *testing.T) {
	enc, replaced := EncodeValue("café 中文")
	if len(replaced) == 0 {
		t.Fatal("expected non-octet code points to be reported as replaced")
	}
	if !strings.Contains(enc, `\x{4e2d}`) {
		t.Fatalf("expected \\x{4e2d} escape in %q", enc)
	}
}

func TestEncodeNameEscapesUnsafeChars(t *testing.T) {
	enc := EncodeName("weird name")
	if strings.Contains(enc, " ") {
		t.Fatalf("expected space in name to be percent-encoded, got %q", enc)
	}
	if !strings.Contains(enc, "%20") {
		t.Fatalf("expected %%20 in %q", enc)
	}
}

func TestDecodeLineRejectsNoSeparator(t *testing.T) {
	if _, _, ok := DecodeLine("nothingtosplit"); ok {
		t.Fatal("expected decode failure for a line with no separator")
	}
}

func TestDecodeLineColonForm(t *testing.T) {
	name, value, ok := DecodeLine("request_id: abc123")
	if !ok || name != "request_id" || value != "abc123" {
		t.Fatalf("got (%q, %q, %v)", name, value, ok)
	}
}

func TestAttributesRepeatedNamesAccumulate(t *testing.T) {
	a := NewAttributes()
	a.Add("header", "From")
	a.Add("header", "To")
	list := a.List("header")
	if len(list) != 2 || list[0] != "From" || list[1] != "To" {
		t.Fatalf("unexpected list: %v", list)
	}
}

func TestReadFrameStopsAtBlankLine(t *testing.T) {
	input := "request_id=1\r\ndomain=example.org\r\n\r\nleftover=data\r\n"
	r := bufio.NewReader(strings.NewReader(input))

	attrs, err := ReadFrame(r, nil)
	if err != nil {
		t.Fatal(err)
	}
	if v, _ := attrs.Get("request_id"); v != "1" {
		t.Fatalf("expected request_id=1, got %q", v)
	}
	if v, _ := attrs.Get("domain"); v != "example.org" {
		t.Fatalf("expected domain=example.org, got %q", v)
	}

	attrs2, err := ReadFrame(r, nil)
	if err != nil {
		t.Fatal(err)
	}
	if v, _ := attrs2.Get("leftover"); v != "data" {
		t.Fatalf("expected second frame to carry leftover=data, got %+v", attrs2)
	}
}

func TestReadFrameSkipsMalformedLines(t *testing.T) {
	input := "this is not valid\r\ndomain=example.org\r\n\r\n"
	r := bufio.NewReader(strings.NewReader(input))

	var bad []string
	attrs, err := ReadFrame(r, func(line string) { bad = append(bad, line) })
	if err != nil {
		t.Fatal(err)
	}
	if len(bad) != 1 {
		t.Fatalf("expected one malformed line reported, got %v", bad)
	}
	if v, _ := attrs.Get("domain"); v != "example.org" {
		t.Fatalf("expected malformed line to be skipped without aborting the frame, got %+v", attrs)
	}
}

func TestWriteFrameTerminatesWithBlankLine(t *testing.T) {
	attrs := NewAttributes()
	attrs.Add("request_id", "1")
	attrs.Add("b", "c2lnbmF0dXJl")

	var buf bytes.Buffer
	if _, err := WriteFrame(&buf, attrs); err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(buf.String(), "\r\n\r\n") {
		t.Fatalf("expected frame to end with a blank line, got %q", buf.String())
	}

	r := bufio.NewReader(&buf)
	roundTripped, err := ReadFrame(r, nil)
	if err != nil {
		t.Fatal(err)
	}
	if v, _ := roundTripped.Get("request_id"); v != "1" {
		t.Fatalf("expected request_id=1 after round trip, got %+v", roundTripped)
	}
}

func TestCodecRoundTripProperty(t *testing.T) {
	names := []string{"a", "a.b", "a_b", "a+b", "a-b", "Log_Id.2"}
	values := []string{
		"", "simple", "has space", "100%", "a=b", "tab\tnotcontrolled",
	}
	for _, n := range names {
		for _, v := range values {
			if strings.ContainsFunc(v, func(r rune) bool { return unicode.IsControl(r) }) {
				continue
			}
			line, _ := EncodeLine(n, v)
			gotName, gotValue, ok := DecodeLine(line)
			if !ok {
				t.Fatalf("decode failed for line %q (from name=%q value=%q)", line, n, v)
			}
			if gotName != n || gotValue != v {
				t.Errorf("round trip mismatch for name=%q value=%q: got (%q, %q) via line %q", n, v, gotName, gotValue, line)
			}
		}
	}
}
