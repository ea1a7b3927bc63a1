package services

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"psblearn/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newCatalog(f *fixture) *TestCatalog {
	return NewTestCatalog(f.db, NewDirectoryService(f.db), nil, 0)
}

func TestListPublishedTests(t *testing.T) {
	f := newFixture(t)
	catalog := newCatalog(f)
	ctx := context.Background()

	hidden := false
	first, err := catalog.CreateTest(ctx, f.course.ID, &CreateTestRequest{Title: "first"})
	if err != nil {
		t.Fatalf("CreateTest: %v", err)
	}
	if _, err := catalog.CreateTest(ctx, f.course.ID, &CreateTestRequest{Title: "draft", IsPublished: &hidden}); err != nil {
		t.Fatalf("CreateTest: %v", err)
	}
	second, err := catalog.CreateTest(ctx, f.course.ID, &CreateTestRequest{Title: "second"})
	if err != nil {
		t.Fatalf("CreateTest: %v", err)
	}

	items, err := catalog.ListPublishedTests(ctx, f.course.ID)
	if err != nil {
		t.Fatalf("ListPublishedTests: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("items = %d, want 2", len(items))
	}
	if items[0].ID != second.ID || items[1].ID != first.ID {
		t.Fatalf("order = [%d %d], want [%d %d]", items[0].ID, items[1].ID, second.ID, first.ID)
	}

	other, err := catalog.ListPublishedTests(ctx, f.course.ID+100)
	if err != nil {
		t.Fatalf("ListPublishedTests: %v", err)
	}
	if len(other) != 0 {
		t.Fatalf("unknown course returned %d items", len(other))
	}
}

func TestCreateTestUnknownCourse(t *testing.T) {
	f := newFixture(t)
	_, err := newCatalog(f).CreateTest(context.Background(), 9999, &CreateTestRequest{Title: "x"})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestGetTestForStudentHidesCorrectness(t *testing.T) {
	f := newFixture(t)
	test, _ := seedScenario(t, f)

	view, err := newCatalog(f).GetTestForStudent(context.Background(), test.ID)
	if err != nil {
		t.Fatalf("GetTestForStudent: %v", err)
	}
	if len(view.Questions) != 2 || len(view.Questions[0].Options) != 2 || len(view.Questions[1].Options) != 3 {
		t.Fatalf("unexpected shape %+v", view)
	}

	data, err := json.Marshal(view)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if strings.Contains(string(data), "is_correct") {
		t.Fatalf("student view leaks correctness: %s", data)
	}
}

func TestGetTestForStudentUnpublished(t *testing.T) {
	f := newFixture(t)
	test, _ := f.seedTest(t, false,
		questionSpec{text: "Q", qType: models.QuestionSingle, options: []optionSpec{{"A", true}}},
	)
	catalog := newCatalog(f)

	if _, err := catalog.GetTestForStudent(context.Background(), test.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}

	author, err := catalog.GetTestForAuthor(context.Background(), test.ID)
	if err != nil {
		t.Fatalf("GetTestForAuthor: %v", err)
	}
	if author.IsPublished || !author.Questions[0].Options[0].IsCorrect {
		t.Fatalf("unexpected author view %+v", author)
	}
}

func TestAddQuestionOrdering(t *testing.T) {
	f := newFixture(t)
	catalog := newCatalog(f)
	ctx := context.Background()

	test, err := catalog.CreateTest(ctx, f.course.ID, &CreateTestRequest{Title: "ordering"})
	if err != nil {
		t.Fatalf("CreateTest: %v", err)
	}

	add := func(text string, order *int) {
		t.Helper()
		_, err := catalog.AddQuestion(ctx, test.ID, &CreateQuestionRequest{
			Text:       text,
			Type:       models.QuestionSingle,
			OrderIndex: order,
			Options:    []CreateOptionRequest{{Text: "a", IsCorrect: true}, {Text: "b"}},
		})
		if err != nil {
			t.Fatalf("AddQuestion(%s): %v", text, err)
		}
	}

	five, zero := 5, 0
	add("appended-0", nil)
	add("explicit-5", &five)
	add("appended-6", nil)
	add("explicit-0", &zero)

	view, err := catalog.GetTestForStudent(ctx, test.ID)
	if err != nil {
		t.Fatalf("GetTestForStudent: %v", err)
	}

	var got []string
	for _, q := range view.Questions {
		got = append(got, q.Text)
	}
	// ties on order_index fall back to creation order
	want := []string{"appended-0", "explicit-0", "explicit-5", "appended-6"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("order = %v, want %v", got, want)
	}
	if view.Questions[3].OrderIndex != 6 {
		t.Fatalf("appended order_index = %d, want 6", view.Questions[3].OrderIndex)
	}
}

func TestAddQuestionValidation(t *testing.T) {
	f := newFixture(t)
	test, _ := seedScenario(t, f)
	catalog := newCatalog(f)

	tests := []struct {
		name string
		req  CreateQuestionRequest
		want error
	}{
		{
			name: "single without correct",
			req:  CreateQuestionRequest{Text: "q", Type: models.QuestionSingle, Options: []CreateOptionRequest{{Text: "a"}, {Text: "b"}}},
			want: ErrInvalidInput,
		},
		{
			name: "single with two correct",
			req:  CreateQuestionRequest{Text: "q", Type: models.QuestionSingle, Options: []CreateOptionRequest{{Text: "a", IsCorrect: true}, {Text: "b", IsCorrect: true}}},
			want: ErrInvalidInput,
		},
		{
			name: "unknown type",
			req:  CreateQuestionRequest{Text: "q", Type: "essay", Options: []CreateOptionRequest{{Text: "a", IsCorrect: true}}},
			want: ErrInvalidInput,
		},
		{
			name: "no options",
			req:  CreateQuestionRequest{Text: "q", Type: models.QuestionMultiple},
			want: ErrInvalidInput,
		},
		{
			name: "blank text",
			req:  CreateQuestionRequest{Text: "  ", Type: models.QuestionMultiple, Options: []CreateOptionRequest{{Text: "a"}}},
			want: ErrInvalidInput,
		},
		{
			name: "multiple without correct is allowed",
			req:  CreateQuestionRequest{Text: "q", Type: models.QuestionMultiple, Options: []CreateOptionRequest{{Text: "a"}, {Text: "b"}}},
			want: nil,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := catalog.AddQuestion(context.Background(), test.ID, &tc.req)
			if tc.want == nil {
				if err != nil {
					t.Fatalf("AddQuestion: %v", err)
				}
				return
			}
			if !errors.Is(err, tc.want) {
				t.Fatalf("err = %v, want %v", err, tc.want)
			}
		})
	}

	_, err := catalog.AddQuestion(context.Background(), 9999, &CreateQuestionRequest{
		Text: "q", Type: models.QuestionSingle, Options: []CreateOptionRequest{{Text: "a", IsCorrect: true}},
	})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing test err = %v, want ErrNotFound", err)
	}
}

func TestDeleteTestCascades(t *testing.T) {
	f := newFixture(t)
	f.enroll(t, f.student.ID)
	test, opts := seedScenario(t, f)
	keep, _ := f.seedTest(t, true,
		questionSpec{text: "K", qType: models.QuestionSingle, options: []optionSpec{{"k", true}}},
	)

	engine := newEngine(f, nil)
	if _, err := engine.Submit(context.Background(), test.ID, f.student.ID, &SubmitRequest{Answers: []AnswerEntry{
		{QuestionID: opts[0][0].QuestionID, SelectedOptionIDs: []uint{opts[0][0].ID}},
	}}); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	catalog := newCatalog(f)
	if err := catalog.DeleteTest(context.Background(), test.ID); err != nil {
		t.Fatalf("DeleteTest: %v", err)
	}

	if n := f.count(t, &models.Test{}, "id = ?", test.ID); n != 0 {
		t.Fatalf("test still present")
	}
	if n := f.count(t, &models.Question{}, "test_id = ?", test.ID); n != 0 {
		t.Fatalf("questions left: %d", n)
	}
	if n := f.count(t, &models.Attempt{}, "test_id = ?", test.ID); n != 0 {
		t.Fatalf("attempts left: %d", n)
	}
	if n := f.count(t, &models.Answer{}, ""); n != 0 {
		t.Fatalf("answers left: %d", n)
	}
	if n := f.count(t, &models.Option{}, ""); n != 1 {
		t.Fatalf("options = %d, want only the other test's option", n)
	}
	if n := f.count(t, &models.Test{}, "id = ?", keep.ID); n != 1 {
		t.Fatalf("unrelated test was deleted")
	}

	if err := catalog.DeleteTest(context.Background(), test.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second delete err = %v, want ErrNotFound", err)
	}
}

func TestDeleteQuestion(t *testing.T) {
	f := newFixture(t)
	test, opts := seedScenario(t, f)
	catalog := newCatalog(f)

	if err := catalog.DeleteQuestion(context.Background(), opts[0][0].QuestionID); err != nil {
		t.Fatalf("DeleteQuestion: %v", err)
	}

	view, err := catalog.GetTestForAuthor(context.Background(), test.ID)
	if err != nil {
		t.Fatalf("GetTestForAuthor: %v", err)
	}
	if len(view.Questions) != 1 || view.Questions[0].Text != "Q2" {
		t.Fatalf("unexpected questions %+v", view.Questions)
	}
	if n := f.count(t, &models.Option{}, "question_id = ?", opts[0][0].QuestionID); n != 0 {
		t.Fatalf("options left: %d", n)
	}

	if err := catalog.DeleteQuestion(context.Background(), 9999); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestSetPublished(t *testing.T) {
	f := newFixture(t)
	test, _ := seedScenario(t, f)
	catalog := newCatalog(f)
	ctx := context.Background()

	view, err := catalog.SetPublished(ctx, test.ID, false)
	if err != nil {
		t.Fatalf("SetPublished: %v", err)
	}
	if view.IsPublished {
		t.Fatal("test still published")
	}
	if _, err := catalog.GetTestForStudent(ctx, test.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}

	if _, err := catalog.SetPublished(ctx, 9999, true); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestStudentViewCache(t *testing.T) {
	f := newFixture(t)
	test, _ := seedScenario(t, f)

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	catalog := NewTestCatalog(f.db, NewDirectoryService(f.db), rdb, time.Minute)
	ctx := context.Background()
	key := testCacheKey(test.ID)

	if _, err := catalog.GetTestForStudent(ctx, test.ID); err != nil {
		t.Fatalf("GetTestForStudent: %v", err)
	}
	if !mr.Exists(key) {
		t.Fatal("student view was not cached")
	}
	cached, err := mr.Get(key)
	if err != nil {
		t.Fatalf("read cache: %v", err)
	}
	if strings.Contains(cached, "is_correct") {
		t.Fatalf("cached view leaks correctness: %s", cached)
	}

	_, err = catalog.AddQuestion(ctx, test.ID, &CreateQuestionRequest{
		Text: "Q3", Type: models.QuestionSingle, Options: []CreateOptionRequest{{Text: "a", IsCorrect: true}},
	})
	if err != nil {
		t.Fatalf("AddQuestion: %v", err)
	}
	if mr.Exists(key) {
		t.Fatal("cache not invalidated after AddQuestion")
	}

	view, err := catalog.GetTestForStudent(ctx, test.ID)
	if err != nil {
		t.Fatalf("GetTestForStudent: %v", err)
	}
	if len(view.Questions) != 3 {
		t.Fatalf("questions = %d, want 3", len(view.Questions))
	}

	if _, err := catalog.SetPublished(ctx, test.ID, false); err != nil {
		t.Fatalf("SetPublished: %v", err)
	}
	if _, err := catalog.GetTestForStudent(ctx, test.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unpublished test served from cache: %v", err)
	}
}

func TestStudentViewCacheRedisDown(t *testing.T) {
	f := newFixture(t)
	test, _ := seedScenario(t, f)

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { rdb.Close() })
	mr.Close()

	catalog := NewTestCatalog(f.db, NewDirectoryService(f.db), rdb, time.Minute)
	view, err := catalog.GetTestForStudent(context.Background(), test.ID)
	if err != nil {
		t.Fatalf("GetTestForStudent: %v", err)
	}
	if view.ID != test.ID {
		t.Fatalf("id = %d, want %d", view.ID, test.ID)
	}
}

func TestStudentViewCacheStaleEntry(t *testing.T) {
	f := newFixture(t)
	test, _ := seedScenario(t, f)

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	catalog := NewTestCatalog(f.db, NewDirectoryService(f.db), rdb, time.Minute)
	ctx := context.Background()
	key := testCacheKey(test.ID)

	fill := func() string {
		t.Helper()
		if _, err := catalog.GetTestForStudent(ctx, test.ID); err != nil {
			t.Fatalf("GetTestForStudent: %v", err)
		}
		data, err := mr.Get(key)
		if err != nil {
			t.Fatalf("read cache: %v", err)
		}
		return data
	}

	// a reader that loaded the test before it was unpublished writes its
	// entry after the invalidation
	stale := fill()
	if _, err := catalog.SetPublished(ctx, test.ID, false); err != nil {
		t.Fatalf("SetPublished: %v", err)
	}
	if err := mr.Set(key, stale); err != nil {
		t.Fatalf("write cache: %v", err)
	}
	if _, err := catalog.GetTestForStudent(ctx, test.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if mr.Exists(key) {
		t.Fatal("stale entry for unpublished test kept")
	}

	// same race against a content change
	if _, err := catalog.SetPublished(ctx, test.ID, true); err != nil {
		t.Fatalf("SetPublished: %v", err)
	}
	stale = fill()
	_, err := catalog.AddQuestion(ctx, test.ID, &CreateQuestionRequest{
		Text: "Q3", Type: models.QuestionSingle, Options: []CreateOptionRequest{{Text: "a", IsCorrect: true}},
	})
	if err != nil {
		t.Fatalf("AddQuestion: %v", err)
	}
	if err := mr.Set(key, stale); err != nil {
		t.Fatalf("write cache: %v", err)
	}
	view, err := catalog.GetTestForStudent(ctx, test.ID)
	if err != nil {
		t.Fatalf("GetTestForStudent: %v", err)
	}
	if len(view.Questions) != 3 {
		t.Fatalf("questions = %d, want 3", len(view.Questions))
	}

	// an untouched entry is served as is
	again, err := catalog.GetTestForStudent(ctx, test.ID)
	if err != nil {
		t.Fatalf("GetTestForStudent: %v", err)
	}
	if len(again.Questions) != 3 {
		t.Fatalf("cached questions = %d, want 3", len(again.Questions))
	}
}
