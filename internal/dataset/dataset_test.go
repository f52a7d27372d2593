package dataset_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"call-analytics-go/internal/dataset"
	"call-analytics-go/internal/types"
	. "github.com/smartystreets/goconvey/convey"
	"github.com/xuri/excelize/v2"
)

func writeFile(t *testing.T, root, key string, mod time.Time) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(`[]`), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.Chtimes(p, mod, mod); err != nil {
		t.Fatal(err)
	}
}

func TestDirSource(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	Convey("Given a transcript tree", t, func() {
		root := t.TempDir()
		writeFile(t, root, "calls/a-1_analysis.json", now.Add(-1*time.Hour))
		writeFile(t, root, "calls/b-2.json", now.Add(-30*time.Minute))
		writeFile(t, root, "calls/c-3.JSON", now.Add(-48*time.Hour))
		writeFile(t, root, "calls/notes.txt", now)
		writeFile(t, root, "other/d-4.json", now)
		ctx := context.Background()

		Convey("When listing a prefix", func() {
			objs, err := dataset.NewDirSource(root).List(ctx, "calls/", 0)

			Convey("Then only json objects are returned, newest first", func() {
				So(err, ShouldBeNil)
				So(len(objs), ShouldEqual, 3)
				So(objs[0].Key, ShouldEqual, "calls/b-2.json")
				So(objs[1].Key, ShouldEqual, "calls/a-1_analysis.json")
				So(objs[2].Key, ShouldEqual, "calls/c-3.JSON")
			})
		})

		Convey("When listing with a window and a cap", func() {
			src := dataset.NewDirSource(root, dataset.WithModifiedWithin(24*time.Hour),
				dataset.WithClock(func() time.Time { return now }))
			objs, err := src.List(ctx, "", 2)

			Convey("Then old objects are dropped and the cap applies", func() {
				So(err, ShouldBeNil)
				So(len(objs), ShouldEqual, 2)
				So(objs[0].Key, ShouldEqual, "other/d-4.json")
				So(objs[1].Key, ShouldEqual, "calls/b-2.json")
			})
		})

		Convey("When reading keys", func() {
			src := dataset.NewDirSource(root)
			b, err := src.Get(ctx, "calls/b-2.json")
			_, escErr := src.Get(ctx, "../etc/passwd")
			_, missErr := src.Get(ctx, "calls/none.json")

			Convey("Then listed keys read and bad keys fail as source errors", func() {
				So(err, ShouldBeNil)
				So(string(b), ShouldEqual, "[]")
				So(errors.Is(escErr, types.ErrSource), ShouldBeTrue)
				So(errors.Is(missErr, types.ErrSource), ShouldBeTrue)
			})
		})
	})

	Convey("Given a missing root", t, func() {
		_, err := dataset.NewDirSource(filepath.Join(t.TempDir(), "nope")).List(context.Background(), "", 0)

		Convey("Then ErrSource is returned", func() {
			So(errors.Is(err, types.ErrSource), ShouldBeTrue)
		})
	})
}

func TestContactID(t *testing.T) {
	Convey("Given conforming keys", t, func() {
		cases := map[string]string{
			"transcripts/2025/01/6f1c2a9e-77aa-4c3d_analysis.json": "6f1c2a9e-77aa-4c3d",
			"abc123.json":          "abc123",
			"x/y/CALL-9_v2_a.json": "CALL-9",
		}
		for key, want := range cases {
			got, err := dataset.ContactIDFromKey(key)
			So(err, ShouldBeNil)
			So(got, ShouldEqual, want)
		}
	})

	Convey("Given non-conforming keys", t, func() {
		for _, key := range []string{"calls/_x.json", "calls/-abc.json", "calls/a b.json", "calls/.json"} {
			_, err := dataset.ContactIDFromKey(key)
			So(errors.Is(err, types.ErrMissingMetadata), ShouldBeTrue)
		}
	})

	Convey("Given an object whose key does not conform", t, func() {
		obj := dataset.Object{Key: "calls/recording 01.json"}

		Convey("Then the payload contact id is used", func() {
			id, err := dataset.ResolveContactID(obj, []byte(`{"CustomerMetadata": {"ContactId": "c-77"}, "Transcript": []}`))
			So(err, ShouldBeNil)
			So(id, ShouldEqual, "c-77")
		})

		Convey("Then without one ErrMissingMetadata is returned", func() {
			_, err := dataset.ResolveContactID(obj, []byte(`[]`))
			So(errors.Is(err, types.ErrMissingMetadata), ShouldBeTrue)
		})
	})

	Convey("Given a manifest contact id", t, func() {
		id, err := dataset.ResolveContactID(dataset.Object{Key: "calls/k-1.json", ContactID: "m-1"}, nil)

		Convey("Then it wins over the key", func() {
			So(err, ShouldBeNil)
			So(id, ShouldEqual, "m-1")
		})
	})
}

func TestManifest(t *testing.T) {
	Convey("Given an xlsx manifest", t, func() {
		dir := t.TempDir()
		path := filepath.Join(dir, "manifest.xlsx")
		f := excelize.NewFile()
		So(f.SetSheetRow("Sheet1", "A1", &[]any{"Object Key", "Contact ID", "Last Modified"}), ShouldBeNil)
		So(f.SetSheetRow("Sheet1", "A2", &[]any{"calls/rec 1.json", "c-100", "2025-05-31 10:00:00"}), ShouldBeNil)
		So(f.SetSheetRow("Sheet1", "A3", &[]any{"", "c-101", ""}), ShouldBeNil)
		So(f.SaveAs(path), ShouldBeNil)

		entries, err := dataset.LoadManifest(path)

		Convey("Then rows with keys are loaded", func() {
			So(err, ShouldBeNil)
			So(len(entries), ShouldEqual, 1)
			So(entries[0].ContactID, ShouldEqual, "c-100")
			So(entries[0].LastModified, ShouldEqual, time.Date(2025, 5, 31, 10, 0, 0, 0, time.UTC))
		})

		Convey("Then a source using it reports the manifest id and time", func() {
			writeFile(t, dir, "calls/rec 1.json", time.Now())
			objs, err := dataset.NewDirSource(dir, dataset.WithManifest(entries)).List(context.Background(), "calls/", 0)
			So(err, ShouldBeNil)
			So(len(objs), ShouldEqual, 1)
			So(objs[0].ContactID, ShouldEqual, "c-100")
			So(objs[0].LastModified.Year(), ShouldEqual, 2025)
		})
	})
}
