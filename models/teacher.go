package models

import "subject-eval-scraper/stats"

// TeacherAggregate holds running statistics for one instructor across every
// ingested course record.
type TeacherAggregate struct {
	Name           string    `csv:"Teacher Name"`
	RatingAvg      stats.Num `csv:"Teacher Rating (Avg)"`
	RatingStd      stats.Num `csv:"Teacher Rating (STD)"`
	HelpfulnessAvg stats.Num `csv:"Teacher Helpfulness (Avg)"`
	HelpfulnessStd stats.Num `csv:"Teacher Helpfulness (STD)"`
	NumRatings     int       `csv:"Number of Ratings"`
	NumClasses     int       `csv:"Number of Classes"`
}

// NewTeacherAggregate seeds an aggregate from a first sighting. The page
// only reports a batch mean, so the spread within the batch is taken as 0.
func NewTeacherAggregate(r TeacherRating) TeacherAggregate {
	agg := TeacherAggregate{
		Name:           r.Name,
		RatingAvg:      r.Rating,
		HelpfulnessAvg: r.Helpfulness,
		NumRatings:     r.Votes,
		NumClasses:     1,
	}
	if r.Rating.Valid {
		agg.RatingStd = stats.Known(0)
	}
	if r.Helpfulness.Valid {
		agg.HelpfulnessStd = stats.Known(0)
	}
	return agg
}

// Merge folds another course offering's batch into the aggregate using the
// pooled-variance rule. Counts only ever grow.
func (t *TeacherAggregate) Merge(r TeacherRating) {
	n := float64(t.NumRatings)
	votes := float64(r.Votes)

	rating := stats.Combine(
		stats.Dist{Mean: t.RatingAvg, Std: t.RatingStd, N: n},
		stats.Dist{Mean: r.Rating, Std: stats.Known(0), N: votes},
	)
	help := stats.Combine(
		stats.Dist{Mean: t.HelpfulnessAvg, Std: t.HelpfulnessStd, N: n},
		stats.Dist{Mean: r.Helpfulness, Std: stats.Known(0), N: votes},
	)

	if rating.Mean.Valid {
		t.RatingAvg, t.RatingStd = rating.Mean, rating.Std
	}
	if help.Mean.Valid {
		t.HelpfulnessAvg, t.HelpfulnessStd = help.Mean, help.Std
	}
	if r.Votes > 0 {
		t.NumRatings += r.Votes
	}
	t.NumClasses++
}
