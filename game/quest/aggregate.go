package quest

import "context"

// PointsPerLevel is the number of points between consecutive levels.
const PointsPerLevel = 100

// LevelFor returns floor(points/100) + 1.
func LevelFor(points int) int {
	if points < 0 {
		points = 0
	}
	return points/PointsPerLevel + 1
}

// Stats is the read-side summary shown on a profile.
type Stats struct {
	UserID            string `json:"userId"`
	Points            int    `json:"points"`
	Level             int    `json:"level"`
	CompletedCount    int    `json:"completedCount"`
	TotalQuests       int    `json:"totalQuests"`
	PointsToNextLevel int    `json:"pointsToNextLevel"`
}

// PointsFor returns the user's running total, 0 if never initialized.
func (s *Service) PointsFor(ctx context.Context, userID string) (int, error) {
	l, err := s.store.LoadUser(ctx, userID)
	if err != nil || l == nil {
		return 0, err
	}
	return l.Points, nil
}

// Level derives the user's level from their points.
func (s *Service) Level(ctx context.Context, userID string) (int, error) {
	pts, err := s.PointsFor(ctx, userID)
	if err != nil {
		return 0, err
	}
	return LevelFor(pts), nil
}

// CompletedCount counts the user's completed rows.
func (s *Service) CompletedCount(ctx context.Context, userID string) (int, error) {
	l, err := s.store.LoadUser(ctx, userID)
	if err != nil || l == nil {
		return 0, err
	}
	return l.CompletedCount(), nil
}

// Stats bundles points, level and completion counts from a single load.
func (s *Service) Stats(ctx context.Context, userID string) (*Stats, error) {
	l, err := s.store.LoadUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	st := &Stats{UserID: userID, TotalQuests: s.catalog.Len()}
	if l != nil {
		st.Points = l.Points
		st.CompletedCount = l.CompletedCount()
	}
	st.Level = LevelFor(st.Points)
	st.PointsToNextLevel = st.Level*PointsPerLevel - st.Points
	return st, nil
}
