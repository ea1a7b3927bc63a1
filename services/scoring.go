package services

import "psblearn/models"

type idSet map[uint]struct{}

func newIDSet(ids ...uint) idSet {
	s := make(idSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

func (s idSet) equal(other idSet) bool {
	if len(s) != len(other) {
		return false
	}
	for id := range s {
		if _, ok := other[id]; !ok {
			return false
		}
	}
	return true
}

// intersect keeps the ids of s that are also in other.
func (s idSet) intersect(other idSet) idSet {
	out := make(idSet, len(s))
	for id := range s {
		if _, ok := other[id]; ok {
			out[id] = struct{}{}
		}
	}
	return out
}

// scoreQuestion awards one point when the valid selection matches the
// correct set. single needs exactly one selected option. multiple never
// scores when no option is marked correct.
func scoreQuestion(qType models.QuestionType, selected, correct idSet) int {
	switch qType {
	case models.QuestionSingle:
		if len(selected) == 1 && selected.equal(correct) {
			return 1
		}
	case models.QuestionMultiple:
		if len(correct) > 0 && selected.equal(correct) {
			return 1
		}
	}
	return 0
}

// requestedSelections groups submitted entries by question. Entries for
// questions outside the test are dropped and counted; repeated entries for
// the same question are merged and every repeated option id is counted as
// dropped.
func requestedSelections(questions []models.Question, entries []AnswerEntry) (map[uint]idSet, int) {
	known := make(map[uint]bool, len(questions))
	for _, q := range questions {
		known[q.ID] = true
	}

	requested := make(map[uint]idSet)
	dropped := 0
	for _, entry := range entries {
		if !known[entry.QuestionID] {
			dropped++
			continue
		}
		set, ok := requested[entry.QuestionID]
		if !ok {
			set = idSet{}
			requested[entry.QuestionID] = set
		}
		for _, id := range entry.SelectedOptionIDs {
			if _, seen := set[id]; seen {
				dropped++
				continue
			}
			set[id] = struct{}{}
		}
	}
	return requested, dropped
}
