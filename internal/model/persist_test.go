package model

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSaveLoad_RoundTrip(t *testing.T) {
	kinds := []Kind{KindRandomForest, KindGradientBoosting, KindLinear}
	for _, kind := range kinds {
		t.Run(string(kind), func(t *testing.T) {
			p, err := New(kind, WithSeed(3))
			if err != nil {
				t.Fatal(err)
			}
			X, y := syntheticFrame(t, 60)
			if _, err := p.Train(X, y, 0.2); err != nil {
				t.Fatalf("Train failed: %v", err)
			}

			path := filepath.Join(t.TempDir(), "nested", "model.gob")
			if err := p.Save(path); err != nil {
				t.Fatalf("Save failed: %v", err)
			}

			loaded, err := Load(path)
			if err != nil {
				t.Fatalf("Load failed: %v", err)
			}
			if loaded.Kind() != kind {
				t.Errorf("kind not preserved: want %s, got %s", kind, loaded.Kind())
			}
			if !loaded.IsTrained() {
				t.Error("loaded model must be trained")
			}

			wantNames := p.FeatureNames()
			gotNames := loaded.FeatureNames()
			if len(wantNames) != len(gotNames) {
				t.Fatalf("feature contract not preserved: %v vs %v", wantNames, gotNames)
			}
			for i := range wantNames {
				if wantNames[i] != gotNames[i] {
					t.Errorf("feature %d: want %s, got %s", i, wantNames[i], gotNames[i])
				}
			}

			want, err := p.Predict(X)
			if err != nil {
				t.Fatal(err)
			}
			got, err := loaded.Predict(X)
			if err != nil {
				t.Fatalf("Predict on loaded model failed: %v", err)
			}
			for i := range want {
				if want[i] != got[i] {
					t.Fatalf("prediction %d differs after round trip: %v vs %v", i, want[i], got[i])
				}
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.gob")); err == nil {
		t.Error("expected error for missing artifact")
	}
}

func TestLoad_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corrupt.gob")
	if err := os.WriteFile(path, []byte("not a gob artifact"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected error for corrupt artifact")
	}
}
