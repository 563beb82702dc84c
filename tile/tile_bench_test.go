package tile

import "testing"

func BenchmarkGetVisibleTiles(b *testing.B) {
	layouts := make([]PageLayout, 50)
	for i := range layouts {
		layouts[i] = PageLayout{Page: i + 1, X: 0, Y: float64(i) * 800, Width: 612, Height: 792}
	}
	viewport := Rect{X: 0, Y: 4000, Width: 1200, Height: 900}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = GetVisibleTiles(viewport, layouts, 8, 8, 128, true)
	}
}

func BenchmarkGetTargetScaleTier(b *testing.B) {
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = GetTargetScaleTier(16.37, 2, 32, true)
	}
}
