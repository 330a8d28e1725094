// Package analytics summarizes the tasks a viewer can see.
package analytics

import (
	"math"
	"sort"
	"time"

	"github.com/fkhayef/teamtasks/internal/task"
	"github.com/fkhayef/teamtasks/internal/user"
)

// TopPerformerLimit caps the leaderboard
const TopPerformerLimit = 5

// Summary is the analytics view over a task set
type Summary struct {
	Total          int                   `json:"total"`
	ByStatus       map[task.Status]int   `json:"by_status"`
	ByPriority     map[task.Priority]int `json:"by_priority"`
	CompletionRate int                   `json:"completion_rate"` // percent of tasks Done, rounded
	TopPerformers  []Performer           `json:"top_performers"`
	Users          []UserOverview        `json:"users,omitempty"`
}

// Performer counts a user's completed tasks that had a due date
type Performer struct {
	UserID      string  `json:"user_id"`
	Name        string  `json:"name"`
	OnTimeCount int     `json:"on_time_count"`
	TotalCount  int     `json:"total_count"`
	OnTimeRate  float64 `json:"on_time_rate"`
}

// UserOverview is one row of the admin per-user table
type UserOverview struct {
	UserID   string `json:"user_id"`
	Name     string `json:"name"`
	Assigned int    `json:"assigned"`
	Done     int    `json:"done"`
}

// Compute builds a summary. A Done task without a completion time counts as
// completed at now. Every assignee of an on-time task is credited.
func Compute(tasks []*task.Task, users []*user.User, now time.Time, withUsers bool) *Summary {
	s := &Summary{
		Total: len(tasks),
		ByStatus: map[task.Status]int{
			task.StatusToDo:       0,
			task.StatusInProgress: 0,
			task.StatusDone:       0,
		},
		ByPriority: map[task.Priority]int{
			task.PriorityLow:    0,
			task.PriorityMedium: 0,
			task.PriorityHigh:   0,
		},
		TopPerformers: []Performer{},
	}

	names := make(map[string]string, len(users))
	for _, u := range users {
		names[u.ID] = u.Name
	}

	perf := map[string]*Performer{}
	for _, t := range tasks {
		s.ByStatus[t.Status]++
		s.ByPriority[t.Priority]++

		if t.Status != task.StatusDone || t.DueAt == nil {
			continue
		}
		completed := now
		if t.CompletedAt != nil {
			completed = *t.CompletedAt
		}
		onTime := !completed.After(*t.DueAt)

		for _, id := range t.Assignees {
			p := perf[id]
			if p == nil {
				p = &Performer{UserID: id, Name: nameOr(names, id)}
				perf[id] = p
			}
			p.TotalCount++
			if onTime {
				p.OnTimeCount++
			}
		}
	}

	if s.Total > 0 {
		s.CompletionRate = int(math.Round(float64(s.ByStatus[task.StatusDone]) / float64(s.Total) * 100))
	}

	for _, p := range perf {
		p.OnTimeRate = float64(p.OnTimeCount) / float64(p.TotalCount) * 100
		s.TopPerformers = append(s.TopPerformers, *p)
	}
	sort.Slice(s.TopPerformers, func(i, j int) bool {
		a, b := s.TopPerformers[i], s.TopPerformers[j]
		if a.OnTimeCount != b.OnTimeCount {
			return a.OnTimeCount > b.OnTimeCount
		}
		if a.OnTimeRate != b.OnTimeRate {
			return a.OnTimeRate > b.OnTimeRate
		}
		return a.UserID < b.UserID
	})
	if len(s.TopPerformers) > TopPerformerLimit {
		s.TopPerformers = s.TopPerformers[:TopPerformerLimit]
	}

	if withUsers {
		s.Users = overview(tasks, users)
	}
	return s
}

func overview(tasks []*task.Task, users []*user.User) []UserOverview {
	rows := make([]UserOverview, len(users))
	index := make(map[string]int, len(users))
	for i, u := range users {
		rows[i] = UserOverview{UserID: u.ID, Name: u.Name}
		index[u.ID] = i
	}
	for _, t := range tasks {
		for _, id := range t.Assignees {
			i, ok := index[id]
			if !ok {
				continue
			}
			rows[i].Assigned++
			if t.Status == task.StatusDone {
				rows[i].Done++
			}
		}
	}
	return rows
}

func nameOr(names map[string]string, id string) string {
	if name := names[id]; name != "" {
		return name
	}
	return id
}
