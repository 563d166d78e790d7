package dashboard

import (
	"time"

	"CryptoDash/internal/domain/models"
	"CryptoDash/internal/services/viewmodel"
	"CryptoDash/internal/usecase/feeds"
	"CryptoDash/internal/usecase/scalper"
)

// FeedState is the freshness of one feed slot.
type FeedState struct {
	Status    feeds.Status `json:"status"`
	FetchedAt *time.Time   `json:"fetched_at,omitempty"`
	Error     string       `json:"error,omitempty"`
}

func feedState(e feeds.Entry) FeedState {
	fs := FeedState{Status: e.Status}
	if !e.FetchedAt.IsZero() {
		at := e.FetchedAt
		fs.FetchedAt = &at
	}
	if e.Err != nil {
		fs.Error = e.Err.Error()
	}
	return fs
}

type OverviewView struct {
	FeedState
	Data *viewmodel.Overview `json:"data,omitempty"`
}

type SeriesView struct {
	FeedState
	Symbol string             `json:"symbol,omitempty"`
	Points int                `json:"points"`
	Last   *models.PricePoint `json:"last,omitempty"`
}

// PredictionView carries the formatted prediction or, when no payload has
// ever been obtained and the feed failed, an explicit unavailable marker.
type PredictionView struct {
	FeedState
	Unavailable bool                  `json:"unavailable"`
	Data        *viewmodel.Prediction `json:"data,omitempty"`
}

type ScalperView struct {
	State     models.SessionState `json:"state"`
	Running   bool                `json:"running"`
	Symbol    string              `json:"symbol,omitempty"`
	Logs      []viewmodel.LogLine `json:"logs"`
	LastError string              `json:"last_error,omitempty"`
	Reason    string              `json:"reason,omitempty"`
	UpdatedAt time.Time           `json:"updated_at"`
}

// ScalperViewOf renders a controller snapshot with logs newest first.
func ScalperViewOf(s scalper.Snapshot) ScalperView {
	return ScalperView{
		State:     s.State,
		Running:   s.State == models.SessionRunning,
		Symbol:    s.Symbol,
		Logs:      viewmodel.LogsNewestFirst(s.Logs),
		LastError: s.LastError,
		Reason:    s.Reason,
		UpdatedAt: s.UpdatedAt,
	}
}

// View is everything the dashboard renders, read for the current selection
// only.
type View struct {
	Selection  Selection      `json:"selection"`
	Timeframe  string         `json:"timeframe"`
	Tab        Tab            `json:"tab"`
	Countdown  int            `json:"countdown"`
	Overview   OverviewView   `json:"overview"`
	Series     SeriesView     `json:"series"`
	Prediction PredictionView `json:"prediction"`
	Scalper    ScalperView    `json:"scalper"`
}

func overviewView(e feeds.Entry) OverviewView {
	v := OverviewView{FeedState: feedState(e)}
	if o, ok := feeds.Value[*models.MarketOverview](e); ok {
		v.Data = viewmodel.BuildOverview(o)
	}
	return v
}

func seriesView(e feeds.Entry) SeriesView {
	v := SeriesView{FeedState: feedState(e)}
	if s, ok := feeds.Value[*models.OHLCVSeries](e); ok && s != nil {
		v.Symbol = s.Symbol
		v.Points = len(s.Prices)
		if n := len(s.Prices); n > 0 {
			last := s.Prices[n-1]
			v.Last = &last
		}
	}
	return v
}

func predictionView(e feeds.Entry) PredictionView {
	v := PredictionView{FeedState: feedState(e)}
	p, _ := feeds.Value[*models.Prediction](e)
	if p == nil {
		v.Unavailable = e.Status == feeds.StatusError
		return v
	}
	data, err := viewmodel.BuildPrediction(p)
	if err != nil {
		v.Unavailable = true
		return v
	}
	v.Data = data
	return v
}
