package parse

import "testing"

const stationListFixture = `<html><body>
<table class="wikitable sortable">
  <tr><td><a href="/wiki/Ang_Mo_Kio_MRT_station">Ang Mo Kio</a></td></tr>
  <tr><td><a href="/wiki/Bukit_Panjang_MRT/LRT_station">Bukit Panjang</a></td></tr>
  <tr><td><a href="/wiki/Founders%27_Memorial_MRT_station"><i>Founders' Memorial</i></a></td></tr>
  <tr><td><a href="/wiki/North_South_line">North South line</a></td></tr>
</table>
<table class="wikitable sortable">
  <tr><td><a href="/wiki/Ang_Mo_Kio_MRT_station">Ang Mo Kio (again)</a></td></tr>
  <tr><td><a href="/wiki/Yishun_MRT_station">Yishun</a></td></tr>
</table>
</body></html>`

func TestStationNames(t *testing.T) {
	names, err := StationNames(stationListFixture)
	if err != nil {
		t.Fatalf("StationNames failed: %v", err)
	}

	want := []string{
		"Ang Mo Kio MRT station",
		"Bukit Panjang MRT/LRT station",
		"Yishun MRT station",
	}
	if len(names) != len(want) {
		t.Fatalf("got %d names %v, want %d", len(names), names, len(want))
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("names[%d] = %q, want %q", i, names[i], want[i])
		}
	}
}

func TestStationNames_NoTables(t *testing.T) {
	if _, err := StationNames("<html><body></body></html>"); err == nil {
		t.Fatal("expected an error for a page without station tables")
	}
}
