package forecast

import "strings"

// Directory resolves patient ids to the display names the history dataset
// is keyed by.
type Directory struct {
	names map[string]string
}

func NewDirectory(names map[string]string) *Directory {
	d := &Directory{names: make(map[string]string, len(names))}
	for id, name := range names {
		d.names[id] = name
	}
	return d
}

// DefaultDirectory covers the patients of the bundled history dataset.
func DefaultDirectory() *Directory {
	return NewDirectory(defaultNames)
}

// Lookup returns the display name for id. Surrounding whitespace is ignored.
func (d *Directory) Lookup(id string) (string, bool) {
	name, ok := d.names[strings.TrimSpace(id)]
	return name, ok
}

func (d *Directory) Len() int { return len(d.names) }

var defaultNames = map[string]string{
	"665677":  "Ruth C. Black",
	"6666001": "Sophia Reynolds",
	"724111":  "Amy C. Morgan",
	"731673":  "Sarah Y. Graham",
	"7321938": "Billie H. Himston",
	"736230":  "Mary C. Long",
	"765583":  "Ruth C. Cook",
	"767980":  "Thomas Q. Moore",
	"7777701": "Steve Richey",
	"7777702": "Yolanda Warren",
	"7777703": "Paul Luttrell",
	"7777704": "Kimberly Revis",
	"7777705": "Angela Montgomery",
	"880378":  "Amy R. Lee",
	"8888801": "Philip Jones",
	"8888802": "Tiffany Westin",
	"8888803": "Kristyn Walker",
	"8888804": "George McKay",
	"629528":  "Michelle Z. Harris",
	"640264":  "Kimberly S. Moore",
	"644201":  "Donna G. Wilson",
	"1768562": "Carl U. Lee",
	"1796238": "Anthony X. Shaw",
	"1869612": "Anthony Z. Coleman",
	"1951076": "Charles B. Williams",
	"2004454": "Kevin H. Lee",
	"2042917": "Michael I. Lewis",
	"2080416": "Joseph P. Shaw",
	"2081539": "Michelle T. Wilson",
	"2113340": "Sharon P. Green",
	"2169591": "Karen L. Lewis",
	"2347217": "Steven F. Coleman",
	"2354220": "Lisa U. Young",
	"2502813": "Dorothy I. Owens",
	"4444001": "Christopher T. Sherman",
	"5555001": "Penny M. Love",
	"5555002": "Michael J. Peters",
	"5555003": "Mildred E. Hoffman",
	"613876":  "Joshua H. Hill",
	"621799":  "Joshua U. Diaz",
	"1032702": "Amy V. Shaw",
	"1081332": "Joseph I. Ross",
	"1098667": "Robert P. Hill",
	"1134281": "Patrick G. Taylor",
	"1137192": "Joshua P. Williams",
	"1157764": "Carol U. Hughes",
	"1186747": "Daniel A. Johnson",
	"1213208": "Brian Q. Gracia",
	"1272431": "Stephan P. Graham",
	"1288992": "Daniel X. Adams",
}
