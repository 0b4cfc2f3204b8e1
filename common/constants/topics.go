package constants

const (
	// CrawlRequestSubject carries crawl run and cancel requests.
	CrawlRequestSubject = "navermap.crawl.request"
	// PlaceCollectedSubject carries one message per collected place.
	PlaceCollectedSubject = "navermap.place.collected"
	// RunFinishedSubject carries the outcome of every finished run.
	RunFinishedSubject = "navermap.crawl.finished"
)

// StreamSubjects are the subjects bound to the crawler stream
var StreamSubjects = []string{CrawlRequestSubject, PlaceCollectedSubject, RunFinishedSubject}
