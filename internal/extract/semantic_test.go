package extract

import "testing"

func TestParseTableHTML_Basic(t *testing.T) {
	rows := ParseTableHTML(`<table>
		<tr><th>Item</th><th>Cost</th></tr>
		<tr><td>Cabinets</td><td>$4,000</td></tr>
		<tr><td>Countertops</td><td>$2,500</td></tr>
	</table>`)

	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	if rows[0][0] != "Item" || rows[0][1] != "Cost" {
		t.Errorf("unexpected header row %v", rows[0])
	}
	if rows[1][0] != "Cabinets" || rows[1][1] != "$4,000" {
		t.Errorf("unexpected row %v", rows[1])
	}
}

func TestParseTableHTML_NestedMarkup(t *testing.T) {
	rows := ParseTableHTML(`<table><tr><td><b>Total</b> cost</td></tr></table>`)
	if len(rows) != 1 || len(rows[0]) != 1 {
		t.Fatalf("unexpected shape %v", rows)
	}
	if rows[0][0] != "Total cost" {
		t.Errorf("expected flattened cell text, got %q", rows[0][0])
	}
}

func TestParseTableHTML_NoTable(t *testing.T) {
	if rows := ParseTableHTML("<p>not a table</p>"); len(rows) != 0 {
		t.Errorf("expected no rows, got %v", rows)
	}
}
