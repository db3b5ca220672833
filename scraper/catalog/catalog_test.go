package catalog

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"subject-eval-scraper/models"
)

const catalogPage = `<html><body>
<h1>Course 2: Mechanical Engineering</h1>
<p>Fall 2024 listings.</p>
<a name="2.001"></a>
<p><h3>2.001 Mechanics and Materials I</h3>
<img alt="Undergrad" title="Undergrad" src="under.gif"><img alt="Fall" src="fall.gif">
<br>Prereq: Calculus II (GIR)
<br>Units: 3-2-7
<p>Introduction to statics and the mechanics of deformable solids. Emphasis on the three basic principles of equilibrium.</p>
<a name="2.01"></a>
<p><h3>2.01 Elements of Structures</h3>
<img alt="Undergrad" src="under.gif">
<p>Elementary structural theory with applications.</p>
<p><h3>2.062J Wave Propagation</h3>
<img title="Graduate (G)" src="grad.gif">
<br>Same subject as 1.138J, 18.376J
<p>Theoretical concepts and analysis of wave problems in science and engineering.</p>
<p><h3>2.S999 Special Subject in Mechanical Engineering</h3>
<br>Content varies.
</body></html>`

func parse(t *testing.T, page string) *Index {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	require.NoError(t, err)
	return Parse(doc)
}

func TestParseBuildsOneEntryPerHeading(t *testing.T) {
	ix := parse(t, catalogPage)
	assert.Equal(t, 4, ix.Len())
}

func TestResolve(t *testing.T) {
	ix := parse(t, catalogPage)

	tests := []struct {
		name      string
		number    string
		subject   string
		wantLevel models.Level
		wantDesc  string
	}{
		{
			name: "undergraduate", number: "2.001", subject: "Mechanics and Materials I",
			wantLevel: models.LevelUndergraduate,
			wantDesc:  "Introduction to statics and the mechanics of deformable solids. Emphasis on the three basic principles of equilibrium.",
		},
		{
			name: "case and spacing insensitive name", number: "2.01", subject: "elements   of STRUCTURES",
			wantLevel: models.LevelUndergraduate, wantDesc: "Elementary structural theory with applications.",
		},
		{
			name: "joint marker stripped", number: "2.062", subject: "Wave Propagation",
			wantLevel: models.LevelGraduate,
			wantDesc:  "Theoretical concepts and analysis of wave problems in science and engineering.",
		},
		{
			name: "joint marker on the query", number: "2.062J", subject: "Wave Propagation",
			wantLevel: models.LevelGraduate,
			wantDesc:  "Theoretical concepts and analysis of wave problems in science and engineering.",
		},
		{
			name: "no level badge", number: "2.S999", subject: "Special Subject",
			wantLevel: models.LevelUnknown, wantDesc: "Content varies.",
		},
		{
			name: "name mismatch", number: "2.001", subject: "Thermodynamics",
			wantLevel: models.LevelUnknown, wantDesc: models.UnknownDescription,
		},
		{
			name: "unknown number", number: "2.999", subject: "Mechanics and Materials I",
			wantLevel: models.LevelUnknown, wantDesc: models.UnknownDescription,
		},
		{
			name: "prefix is not a match", number: "2.0", subject: "Mechanics",
			wantLevel: models.LevelUnknown, wantDesc: models.UnknownDescription,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			level, desc := ix.Resolve(tt.number, tt.subject)
			assert.Equal(t, tt.wantLevel, level)
			assert.Equal(t, tt.wantDesc, desc)
		})
	}
}

func TestEmptyIndexResolvesUnknown(t *testing.T) {
	for _, ix := range []*Index{Empty(), nil, parse(t, "<html><body><p>Not found</p></body></html>")} {
		level, desc := ix.Resolve("2.001", "Mechanics and Materials I")
		assert.Equal(t, models.LevelUnknown, level)
		assert.Equal(t, models.UnknownDescription, desc)
	}
}

func TestToken(t *testing.T) {
	assert.Equal(t, "2.062", Token("2.062J Wave Propagation"))
	assert.Equal(t, "2.001", Token(" 2.001 "))
	assert.Equal(t, "2.001", Token("2.001, 2.01"))
	assert.Equal(t, "", Token(""))
}
