package tiling

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestLayoutPartitionWithoutOverlap(t *testing.T) {
	tiles, err := Layout(1920, 1080, Spec{TilesX: 2, TilesY: 2})
	if err != nil {
		t.Fatalf("Layout failed: %v", err)
	}
	if len(tiles) != 4 {
		t.Fatalf("expected 4 tiles, got %d", len(tiles))
	}

	for _, tile := range tiles {
		if tile.W != 960 || tile.H != 540 {
			t.Errorf("tile %d: size %dx%d, want 960x540", tile.Index, tile.W, tile.H)
		}
		if tile.X != tile.CoreX || tile.W != tile.CoreW {
			t.Errorf("tile %d: inflated without overlap", tile.Index)
		}
		if tile.SharedLeft || tile.SharedRight || tile.SharedTop || tile.SharedBottom {
			t.Errorf("tile %d: shared edges flagged with zero overlap", tile.Index)
		}
	}

	// Row-major indexing.
	if tiles[1].Col != 1 || tiles[1].Row != 0 {
		t.Errorf("tile 1 at col=%d row=%d, want col=1 row=0", tiles[1].Col, tiles[1].Row)
	}
	if tiles[2].X != 0 || tiles[2].Y != 540 {
		t.Errorf("tile 2 at (%d,%d), want (0,540)", tiles[2].X, tiles[2].Y)
	}
}

func TestLayoutRemainderDistribution(t *testing.T) {
	_, spans := axisSpans(101, 4)
	want := []int{26, 25, 25, 25}
	if diff := cmp.Diff(want, spans); diff != "" {
		t.Errorf("spans mismatch (-want +got):\n%s", diff)
	}

	offsets, spans := axisSpans(7, 3)
	sum := 0
	for i, s := range spans {
		if offsets[i] != sum {
			t.Errorf("offset[%d] = %d, want %d", i, offsets[i], sum)
		}
		sum += s
	}
	if sum != 7 {
		t.Errorf("spans sum to %d, want 7", sum)
	}
}

func TestLayoutOverlapInflation(t *testing.T) {
	spec := Spec{TilesX: 2, TilesY: 2, OverlapX: 0.2, OverlapY: 0.2}
	tiles, err := Layout(1920, 1080, spec)
	if err != nil {
		t.Fatalf("Layout failed: %v", err)
	}

	// Base spans 960x540, so the overlap is 192px along x and 108px
	// along y, applied only on shared edges.
	tl := tiles[0]
	if tl.X != 0 || tl.Y != 0 || tl.W != 1152 || tl.H != 648 {
		t.Errorf("top-left tile = (%d,%d %dx%d), want (0,0 1152x648)", tl.X, tl.Y, tl.W, tl.H)
	}
	if !tl.SharedRight || !tl.SharedBottom || tl.SharedLeft || tl.SharedTop {
		t.Errorf("top-left shared edges = L%v R%v T%v B%v", tl.SharedLeft, tl.SharedRight, tl.SharedTop, tl.SharedBottom)
	}

	br := tiles[3]
	if br.X != 768 || br.Y != 432 || br.W != 1152 || br.H != 648 {
		t.Errorf("bottom-right tile = (%d,%d %dx%d), want (768,432 1152x648)", br.X, br.Y, br.W, br.H)
	}
}

func TestLayoutSpansReconstructFrame(t *testing.T) {
	cases := []struct {
		w, h int
		spec Spec
	}{
		{1920, 1080, Spec{TilesX: 2, TilesY: 2, OverlapX: 0.2, OverlapY: 0.2}},
		{1920, 1080, Spec{TilesX: 3, TilesY: 3, OverlapX: 0.08, OverlapY: 0.08}},
		{1280, 720, Spec{TilesX: 5, TilesY: 4, OverlapX: 0.15, OverlapY: 0.3}},
		{101, 53, Spec{TilesX: 4, TilesY: 3, OverlapX: 0.5, OverlapY: 0.5}},
		{640, 640, Spec{TilesX: 20, TilesY: 20, OverlapX: 1, OverlapY: 1}},
	}
	for _, tc := range cases {
		tiles, err := Layout(tc.w, tc.h, tc.spec)
		if err != nil {
			t.Fatalf("Layout(%dx%d %+v) failed: %v", tc.w, tc.h, tc.spec, err)
		}

		// Core cells partition the frame: per row the core spans sum to
		// the frame width, per column to the frame height.
		for row := 0; row < tc.spec.TilesY; row++ {
			sum := 0
			for col := 0; col < tc.spec.TilesX; col++ {
				sum += tiles[row*tc.spec.TilesX+col].CoreW
			}
			if sum != tc.w {
				t.Errorf("%dx%d grid %dx%d: row %d core spans sum to %d, want %d",
					tc.w, tc.h, tc.spec.TilesX, tc.spec.TilesY, row, sum, tc.w)
			}
		}
		for col := 0; col < tc.spec.TilesX; col++ {
			sum := 0
			for row := 0; row < tc.spec.TilesY; row++ {
				sum += tiles[row*tc.spec.TilesX+col].CoreH
			}
			if sum != tc.h {
				t.Errorf("%dx%d grid %dx%d: col %d core spans sum to %d, want %d",
					tc.w, tc.h, tc.spec.TilesX, tc.spec.TilesY, col, sum, tc.h)
			}
		}

		// Inflated tiles stay within the frame and cover their core.
		for _, tile := range tiles {
			if tile.X < 0 || tile.Y < 0 || tile.X+tile.W > tc.w || tile.Y+tile.H > tc.h {
				t.Errorf("tile %d escapes frame: (%d,%d %dx%d) in %dx%d",
					tile.Index, tile.X, tile.Y, tile.W, tile.H, tc.w, tc.h)
			}
			if tile.X > tile.CoreX || tile.X+tile.W < tile.CoreX+tile.CoreW ||
				tile.Y > tile.CoreY || tile.Y+tile.H < tile.CoreY+tile.CoreH {
				t.Errorf("tile %d does not cover its core cell", tile.Index)
			}
		}
	}
}

func TestLayoutOverlapUniformPerAxis(t *testing.T) {
	// 101px over 4 columns gives uneven core spans; the overlap must
	// still be identical for every interior edge.
	tiles, err := Layout(101, 53, Spec{TilesX: 4, TilesY: 1, OverlapX: 0.2})
	if err != nil {
		t.Fatalf("Layout failed: %v", err)
	}
	want := overlapPixels(101, 4, 0.2)
	for _, tile := range tiles {
		if tile.Col == 0 {
			continue
		}
		got := tile.CoreX - tile.X
		if got != want {
			t.Errorf("tile %d left overlap = %dpx, want %dpx", tile.Index, got, want)
		}
	}
}

func TestLayoutRejectsInvalidInput(t *testing.T) {
	cases := []struct {
		name string
		w, h int
		spec Spec
	}{
		{"zero frame", 0, 1080, Spec{TilesX: 2, TilesY: 2}},
		{"zero grid", 1920, 1080, Spec{TilesX: 0, TilesY: 2}},
		{"frame smaller than grid", 10, 10, Spec{TilesX: 20, TilesY: 2}},
		{"overlap below range", 1920, 1080, Spec{TilesX: 2, TilesY: 2, OverlapX: -0.1}},
		{"overlap above range", 1920, 1080, Spec{TilesX: 2, TilesY: 2, OverlapY: 1.5}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Layout(tc.w, tc.h, tc.spec); err == nil {
				t.Errorf("Layout(%dx%d %+v) accepted invalid input", tc.w, tc.h, tc.spec)
			}
		})
	}
}
