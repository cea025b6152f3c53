package calendar

import (
	"reflect"
	"testing"
	"time"

	"github.com/hitoshi/daycast/internal/model"
)

func strPtr(s string) *string { return &s }

func TestStore_AddThenDelete_RestoresPriorState(t *testing.T) {
	s := NewStore()
	existing, err := s.Add("2025-08-18", model.Event{Title: "既存", Start: "08:00", End: "09:00"})
	if err != nil {
		t.Fatalf("Add がエラーを返した: %v", err)
	}
	before := s.EventsOn("2025-08-18")

	added, err := s.Add("2025-08-18", model.Event{Title: "追加", Start: "10:00", End: "11:00"})
	if err != nil {
		t.Fatalf("Add がエラーを返した: %v", err)
	}
	if err := s.Delete("2025-08-18", added.ID); err != nil {
		t.Fatalf("Delete がエラーを返した: %v", err)
	}

	after := s.EventsOn("2025-08-18")
	if !reflect.DeepEqual(before, after) {
		t.Errorf("追加→削除で元に戻らない: before=%v after=%v", before, after)
	}
	if after[0].ID != existing.ID {
		t.Errorf("既存予定のIDが変わった")
	}
}

func TestStore_AddThenDelete_OnEmptyDateRemovesBucket(t *testing.T) {
	s := NewStore()
	added, _ := s.Add("2025-08-18", model.Event{Title: "X"})
	if err := s.Delete("2025-08-18", added.ID); err != nil {
		t.Fatalf("Delete がエラーを返した: %v", err)
	}
	if len(s.Keys()) != 0 {
		t.Errorf("空になった日付キーは削除されるべき: %v", s.Keys())
	}
	if got := s.EventsOn("2025-08-18"); len(got) != 0 {
		t.Errorf("EventsOn = %v, want empty", got)
	}
}

func TestStore_Add_AssignsIDAndDefaultColor(t *testing.T) {
	s := NewStore()
	e, err := s.Add("2025-08-18", model.Event{Title: "  会議  ", Start: "09:00", End: "10:00"})
	if err != nil {
		t.Fatalf("Add がエラーを返した: %v", err)
	}
	if e.ID == "" {
		t.Error("IDが採番されていない")
	}
	if e.Color != model.DefaultEventColor {
		t.Errorf("Color = %q, want %q", e.Color, model.DefaultEventColor)
	}
	if e.Title != "会議" {
		t.Errorf("Title = %q, want %q", e.Title, "会議")
	}
}

func TestStore_Add_RejectsEmptyTitleAndBadKey(t *testing.T) {
	s := NewStore()
	if _, err := s.Add("2025-08-18", model.Event{Title: "   "}); !model.IsCode(err, model.ErrCodeEmptyTitle) {
		t.Errorf("EMPTY_TITLE を期待したが %v", err)
	}
	if _, err := s.Add("2025-8-18", model.Event{Title: "X"}); !model.IsCode(err, model.ErrCodeInvalidDateKey) {
		t.Errorf("INVALID_DATE_KEY を期待したが %v", err)
	}
	if s.Len() != 0 {
		t.Errorf("失敗した追加で状態が変わった: Len = %d", s.Len())
	}
}

func TestStore_EditTitle_ChangesOnlyTitle(t *testing.T) {
	s := NewStore()
	e, _ := s.Add("2025-08-18", model.Event{Title: "old", Start: "09:00", End: "10:00", Color: "#123456"})

	changed, err := s.Edit("2025-08-18", e.ID, EventPatch{Title: strPtr("new")})
	if err != nil {
		t.Fatalf("Edit がエラーを返した: %v", err)
	}
	if !changed {
		t.Error("変更ありを期待した")
	}

	got, _ := s.Find("2025-08-18", e.ID)
	want := e
	want.Title = "new"
	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestStore_EditEmptyTitle_LeavesEventUnchanged(t *testing.T) {
	s := NewStore()
	e, _ := s.Add("2025-08-18", model.Event{Title: "keep", Start: "09:00", End: "10:00"})

	for _, title := range []string{"", "   "} {
		changed, err := s.Edit("2025-08-18", e.ID, EventPatch{Title: strPtr(title)})
		if err != nil {
			t.Fatalf("Edit がエラーを返した: %v", err)
		}
		if changed {
			t.Errorf("空タイトル %q で変更ありになった", title)
		}
	}
	// キャンセル（nil）も同様
	if changed, _ := s.Edit("2025-08-18", e.ID, EventPatch{}); changed {
		t.Error("空パッチで変更ありになった")
	}

	got, _ := s.Find("2025-08-18", e.ID)
	if got != e {
		t.Errorf("予定が変更された: got %+v, want %+v", got, e)
	}
}

func TestStore_EditTimeRange_AppliesAsPair(t *testing.T) {
	s := NewStore()
	e, _ := s.Add("2025-08-18", model.Event{Title: "x", Start: "09:00", End: "10:00"})

	// 片方だけの指定は無視される
	if changed, _ := s.Edit("2025-08-18", e.ID, EventPatch{Start: strPtr("11:00")}); changed {
		t.Error("Startのみの指定は適用されないはず")
	}

	changed, err := s.Edit("2025-08-18", e.ID, EventPatch{Start: strPtr("8:30"), End: strPtr("9:15")})
	if err != nil {
		t.Fatalf("Edit がエラーを返した: %v", err)
	}
	if !changed {
		t.Error("変更ありを期待した")
	}
	got, _ := s.Find("2025-08-18", e.ID)
	if got.Start != "08:30" || got.End != "09:15" {
		t.Errorf("時刻 = %s-%s, want 08:30-09:15", got.Start, got.End)
	}

	if _, err := s.Edit("2025-08-18", e.ID, EventPatch{Start: strPtr("25:00"), End: strPtr("26:00")}); !model.IsCode(err, model.ErrCodeInvalidTime) {
		t.Errorf("INVALID_TIME を期待したが %v", err)
	}
}

func TestStore_EditAndDelete_UnknownID(t *testing.T) {
	s := NewStore()
	if _, err := s.Edit("2025-08-18", "missing", EventPatch{Title: strPtr("x")}); !model.IsCode(err, model.ErrCodeEventNotFound) {
		t.Errorf("EVENT_NOT_FOUND を期待したが %v", err)
	}
	if err := s.Delete("2025-08-18", "missing"); !model.IsCode(err, model.ErrCodeEventNotFound) {
		t.Errorf("EVENT_NOT_FOUND を期待したが %v", err)
	}
}

func TestStore_EditAfterReload_ByID(t *testing.T) {
	// 永続化からの再読み込みで新しいオブジェクトになってもIDで編集できる
	s := NewStore()
	e, _ := s.Add("2025-08-18", model.Event{Title: "x", Start: "09:00", End: "10:00"})
	snap := s.Snapshot()

	reloaded := NewStore()
	reloaded.ReplaceAll(snap)
	if _, err := reloaded.Edit("2025-08-18", e.ID, EventPatch{Title: strPtr("y")}); err != nil {
		t.Fatalf("再読み込み後の編集に失敗: %v", err)
	}
}

func TestStore_Merge_OverlaysOnlyPresentKeys(t *testing.T) {
	s := NewStore()
	_, _ = s.Add("2025-08-17", model.Event{Title: "keep"})
	_, _ = s.Add("2025-08-18", model.Event{Title: "old"})

	s.Merge(model.EventMap{
		"2025-08-18": {{Title: "new", Start: "09:00", End: "10:00"}},
		"2025-08-19": {{Title: "added"}},
	})

	if got := s.EventsOn("2025-08-17"); len(got) != 1 || got[0].Title != "keep" {
		t.Errorf("ペイロードにないキーは保持されるべき: %v", got)
	}
	got := s.EventsOn("2025-08-18")
	if len(got) != 1 || got[0].Title != "new" {
		t.Errorf("ペイロードのキーは上書きされるべき: %v", got)
	}
	if got[0].ID == "" || got[0].Color != model.DefaultEventColor {
		t.Errorf("IDと既定色が補われるべき: %+v", got[0])
	}
	if len(s.EventsOn("2025-08-19")) != 1 {
		t.Error("新しいキーが追加されるべき")
	}
}

func TestStore_ReplaceAll_DropsEverythingElse(t *testing.T) {
	s := NewStore()
	_, _ = s.Add("2025-08-17", model.Event{Title: "gone"})

	s.ReplaceAll(model.EventMap{"2025-08-18": {{Title: "only"}}, "2025-08-19": {}})

	if keys := s.Keys(); !reflect.DeepEqual(keys, []string{"2025-08-18"}) {
		t.Errorf("Keys = %v, want [2025-08-18]", keys)
	}
}

func TestStore_Snapshot_IsDeepCopy(t *testing.T) {
	s := NewStore()
	_, _ = s.Add("2025-08-18", model.Event{Title: "x"})

	snap := s.Snapshot()
	snap["2025-08-18"][0].Title = "mutated"
	snap["2025-08-20"] = []model.Event{{Title: "y"}}

	if s.EventsOn("2025-08-18")[0].Title != "x" {
		t.Error("スナップショットの変更がストアに影響した")
	}
	if s.Len() != 1 {
		t.Errorf("Len = %d, want 1", s.Len())
	}
}

func TestStore_EventsOn_ReturnsCopy(t *testing.T) {
	s := NewStore()
	_, _ = s.Add("2025-08-18", model.Event{Title: "x"})

	got := s.EventsOn("2025-08-18")
	got[0].Title = "mutated"
	if s.EventsOn("2025-08-18")[0].Title != "x" {
		t.Error("EventsOn の返り値の変更がストアに影響した")
	}
}

func TestNewDemoStore_SeedsRelativeToToday(t *testing.T) {
	today := time.Date(2025, 8, 18, 10, 0, 0, 0, time.UTC)
	s := NewDemoStore(today)

	if len(s.EventsOn("2025-08-18")) != 3 {
		t.Errorf("今日のデモ予定数 = %d, want 3", len(s.EventsOn("2025-08-18")))
	}
	tomorrow := s.EventsOn("2025-08-19")
	if len(tomorrow) != 1 || !tomorrow[0].AllDay {
		t.Errorf("明日は終日予定が1件あるべき: %v", tomorrow)
	}
	if len(s.EventsOn("2025-08-25")) != 1 {
		t.Error("1週間後のデモ予定がない")
	}
}
