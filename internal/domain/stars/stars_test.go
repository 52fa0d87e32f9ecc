package stars_test

import (
	"testing"

	"github.com/okian/meradin/internal/domain/stars"
	. "github.com/smartystreets/goconvey/convey"
)

func fills(w stars.Widget) []stars.Fill {
	out := make([]stars.Fill, len(w.Stars))
	for i, s := range w.Stars {
		out[i] = s.Fill
	}
	return out
}

func count(w stars.Widget, f stars.Fill) int {
	n := 0
	for _, s := range w.Stars {
		if s.Fill == f {
			n++
		}
	}
	return n
}

func TestAlignment(t *testing.T) {
	Convey("Given daily alignment scores", t, func() {
		Convey("When the score is 7", func() {
			w := stars.Alignment("today", 7)

			Convey("Then the first seven stars are full", func() {
				So(w.Stars, ShouldHaveLength, stars.Count)
				So(count(w, stars.Full), ShouldEqual, 7)
				So(count(w, stars.Empty), ShouldEqual, 3)
				So(w.Stars[6].Fill, ShouldEqual, stars.Full)
				So(w.Stars[7].Fill, ShouldEqual, stars.Empty)
				So(w.Label, ShouldEqual, "7 out of 10")
				So(w.ID, ShouldEqual, "today")
			})
		})

		Convey("When the score is out of range", func() {
			So(count(stars.Alignment("a", -4), stars.Full), ShouldEqual, 0)
			So(count(stars.Alignment("a", 14), stars.Full), ShouldEqual, 10)
			So(stars.Alignment("a", 14).Label, ShouldEqual, "10 out of 10")
		})

		Convey("When the score is fractional", func() {
			w := stars.Alignment("today", 6.5)

			Convey("Then the seventh star is half", func() {
				So(count(w, stars.Full), ShouldEqual, 6)
				So(w.Stars[6].Fill, ShouldEqual, stars.Half)
				So(w.Stars[6].GradientID, ShouldEqual, "today-half-6")
				So(w.Label, ShouldEqual, "6.5 out of 10")
			})

			Convey("Then other fractions round to the nearest half", func() {
				So(stars.Alignment("a", 6.2).Value, ShouldEqual, 6.0)
				So(stars.Alignment("a", 6.3).Value, ShouldEqual, 6.5)
				So(stars.Alignment("a", 9.8).Value, ShouldEqual, 10.0)
			})
		})
	})
}

func TestCompatibility(t *testing.T) {
	Convey("Given compatibility scores", t, func() {
		Convey("When mapping to half steps", func() {
			cases := map[float64]float64{0: 0, 4: 0.5, 50: 5, 72: 7, 72.4: 7, 72.5: 7.5, 73: 7.5, 75: 7.5, 77: 7.5, 78: 8, 100: 10, 140: 10, -3: 0}
			for score, want := range cases {
				So(stars.CompatibilityStars(score), ShouldEqual, want)
			}
		})

		Convey("When the score is 75", func() {
			w := stars.Compatibility("compat", 75)

			Convey("Then seven stars are full and the eighth is half", func() {
				So(count(w, stars.Full), ShouldEqual, 7)
				So(w.Stars[7].Fill, ShouldEqual, stars.Half)
				So(w.Stars[7].GradientID, ShouldEqual, "compat-half-7")
				So(count(w, stars.Empty), ShouldEqual, 2)
				So(w.Label, ShouldEqual, "7.5 out of 10 stars")
			})
		})

		Convey("When the score maps to whole stars", func() {
			w := stars.Compatibility("compat", 80)

			Convey("Then no star is half", func() {
				So(count(w, stars.Half), ShouldEqual, 0)
				So(count(w, stars.Full), ShouldEqual, 8)
				So(w.Label, ShouldEqual, "8 out of 10 stars")
			})
		})

		Convey("When the score is zero", func() {
			w := stars.Compatibility("c", 0)
			So(fills(w), ShouldNotContain, stars.Full)
			So(w.Label, ShouldEqual, "0 out of 10 stars")
		})
	})
}

func TestGlyphs(t *testing.T) {
	Convey("Given share glyphs", t, func() {
		So(stars.Glyphs(3), ShouldEqual, "★★★☆☆☆☆☆☆☆")
		So(stars.Glyphs(0), ShouldEqual, "☆☆☆☆☆☆☆☆☆☆")
		So(stars.Glyphs(11), ShouldEqual, "★★★★★★★★★★")
		So(stars.Glyphs(6.5), ShouldEqual, "★★★★★★★☆☆☆")
		So(stars.Glyphs(6.4), ShouldEqual, "★★★★★★☆☆☆☆")
	})
}

func TestFormatScore(t *testing.T) {
	Convey("Given scores to print", t, func() {
		So(stars.FormatScore(72), ShouldEqual, "72")
		So(stars.FormatScore(72.5), ShouldEqual, "72.5")
		So(stars.FormatScore(0), ShouldEqual, "0")
	})
}
