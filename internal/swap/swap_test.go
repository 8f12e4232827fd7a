package swap

import (
	"testing"

	"github.com/xkmonitor/core/internal/models"
)

func heldView(name, timeAndPlace string) models.SelectedCourseView {
	return models.SelectedCourseView{CourseName: name, TimeAndPlace: timeAndPlace}
}

func TestLocateStrategyA_ExactNameSubstring(t *testing.T) {
	held := []models.SelectedCourseView{heldView("数据结构", ""), heldView("操作系统", "")}
	got, ok := locate(held, "与已选课程[数据结构]时间冲突")
	if !ok || got.CourseName != "数据结构" {
		t.Fatalf("locate() = %+v, ok=%v, want 数据结构", got, ok)
	}
}

func TestLocateStrategyB_BracketedToken(t *testing.T) {
	held := []models.SelectedCourseView{heldView("操作系统", "")}
	got, ok := locate(held, "conflict with [操作系统]")
	if !ok || got.CourseName != "操作系统" {
		t.Fatalf("locate() = %+v, ok=%v, want 操作系统", got, ok)
	}
}

func TestLocateStrategyC_NamePrefix(t *testing.T) {
	held := []models.SelectedCourseView{heldView("高级程序设计语言", "")}
	got, ok := locate(held, "时间与高级程序重叠")
	if !ok || got.CourseName != "高级程序设计语言" {
		t.Fatalf("locate() = %+v, ok=%v, want 高级程序设计语言", got, ok)
	}
}

func TestLocateStrategyD_TimeSlotOverlap(t *testing.T) {
	held := []models.SelectedCourseView{heldView("无关课程", "1-18周 星期二 5-6节")}
	got, ok := locate(held, "1-18周 星期二 5节")
	if !ok || got.CourseName != "无关课程" {
		t.Fatalf("locate() = %+v, ok=%v, want 无关课程 via time overlap", got, ok)
	}
}

func TestLocateStrategyE_SingleHeldCourseAdopted(t *testing.T) {
	held := []models.SelectedCourseView{heldView("随便课程", "")}
	got, ok := locate(held, "no useful description at all")
	if !ok || got.CourseName != "随便课程" {
		t.Fatalf("locate() = %+v, ok=%v, want the sole held course adopted", got, ok)
	}
}

func TestLocateNoCandidates(t *testing.T) {
	_, ok := locate(nil, "anything")
	if ok {
		t.Fatal("locate() with no held sections should fail")
	}
}

func TestLocateAmbiguousNoMatch(t *testing.T) {
	held := []models.SelectedCourseView{heldView("课程甲", ""), heldView("课程乙", "")}
	_, ok := locate(held, "完全无关的冲突描述")
	if ok {
		t.Fatal("locate() with multiple held courses and no matching strategy should fail")
	}
}

func TestBracketedTokens(t *testing.T) {
	cases := []struct {
		in   string
		want []string
	}{
		{"与[数据结构]冲突", []string{"数据结构"}},
		{"与【操作系统】冲突", []string{"操作系统"}},
		{"no brackets here", nil},
		{"(English) and [数据结构]", []string{"English", "数据结构"}},
	}
	for _, tc := range cases {
		got := bracketedTokens(tc.in)
		if len(got) != len(tc.want) {
			t.Errorf("bracketedTokens(%q) = %v, want %v", tc.in, got, tc.want)
			continue
		}
		for i := range got {
			if got[i] != tc.want[i] {
				t.Errorf("bracketedTokens(%q)[%d] = %q, want %q", tc.in, i, got[i], tc.want[i])
			}
		}
	}
}
