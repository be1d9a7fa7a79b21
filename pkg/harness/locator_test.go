package harness

import (
	"testing"

	. "github.com/onsi/gomega"
)

func TestLocatorString(t *testing.T) {
	testCases := []struct {
		name string
		loc  Locator
		want string
	}{
		{name: "role and name", loc: ByRole("button", "Save File"), want: `role=button[name="Save File"]`},
		{name: "role only", loc: ByRole("heading", ""), want: "role=heading"},
		{name: "css", loc: CSS("md-dialog .scrim"), want: "css=md-dialog .scrim"},
		{name: "first", loc: CSS("md-fab[label='Disabled']").PickFirst(), want: "css=md-fab[label='Disabled'] >> first"},
		{name: "nth", loc: CSS("md-fab").Pick(2), want: "css=md-fab >> nth=2"},
		{name: "pick overrides first", loc: CSS("md-fab").PickFirst().Pick(1), want: "css=md-fab >> nth=1"},
	}

	for _, tc := range testCases {
		if got := tc.loc.String(); got != tc.want {
			t.Errorf("%s: expected %q, got %q", tc.name, tc.want, got)
		}
	}
}

func TestLocatorValidate(t *testing.T) {
	RegisterTestingT(t)

	Expect(ByRole("button", "Save").Validate()).To(Succeed())
	Expect(CSS("md-dialog").Validate()).To(Succeed())
	Expect(Locator{}.Validate()).To(MatchError("locator needs either role or css"))
	Expect(Locator{Role: "button", CSS: "button"}.Validate()).To(HaveOccurred())
	Expect(Locator{Name: "Save"}.Validate()).To(HaveOccurred())
	Expect(CSS("md-fab").Pick(-1).Validate()).To(HaveOccurred())
}

func TestLocatorTargetIsExactByDefault(t *testing.T) {
	RegisterTestingT(t)

	Expect(ByRole("button", "Save").Target().Exact).To(BeTrue())
	loc := ByRole("button", "Save")
	loc.Substring = true
	Expect(loc.Target().Exact).To(BeFalse())
}

func TestLocatorPick(t *testing.T) {
	RegisterTestingT(t)

	_, err := CSS("x").pick(0)
	Expect(err).To(BeAssignableToTypeOf(&ElementNotFoundError{}))

	n, err := CSS("x").pick(1)
	Expect(err).To(BeNil())
	Expect(n).To(Equal(0))

	_, err = CSS("x").pick(3)
	Expect(err).To(BeAssignableToTypeOf(&AmbiguousLocatorError{}))

	n, err = CSS("x").Pick(2).pick(3)
	Expect(err).To(BeNil())
	Expect(n).To(Equal(2))
}

func TestParseLocator(t *testing.T) {
	RegisterTestingT(t)

	for _, loc := range []Locator{
		ByRole("button", "Save File"),
		ByRole("heading", ""),
		CSS("md-dialog .scrim"),
		CSS("md-fab[label='Disabled']").PickFirst(),
		CSS("md-fab").Pick(2),
		{Role: "button", Name: "Save", Substring: true},
	} {
		parsed, err := ParseLocator(loc.String())
		Expect(err).To(BeNil(), loc.String())
		Expect(parsed).To(Equal(loc))
	}

	parsed, err := ParseLocator("md-dialog dialog > .container")
	Expect(err).To(BeNil())
	Expect(parsed).To(Equal(CSS("md-dialog dialog > .container")))

	_, err = ParseLocator(`role=button[name=Save]`)
	Expect(err).To(MatchError(ContainSubstring("name must be quoted")))
	_, err = ParseLocator(`role=button[label="Save"]`)
	Expect(err).To(MatchError(ContainSubstring("only name filters")))
	_, err = ParseLocator("css=md-fab >> nth=x")
	Expect(err).To(MatchError(ContainSubstring("bad nth")))
	_, err = ParseLocator("css=md-fab >> last")
	Expect(err).To(MatchError(ContainSubstring(`unknown modifier "last"`)))
	_, err = ParseLocator("")
	Expect(err).To(HaveOccurred())
}
