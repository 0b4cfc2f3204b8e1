package navermap

const (
	CRAWLER_DOMAIN string = "map.naver.com"

	SiteName      = "navermap"
	searchBaseURL = "https://" + CRAWLER_DOMAIN + "/p/search/"

	ListingFrame = "searchIframe"
	DetailFrame  = "entryIframe"

	// Sentinel is stored for every field the detail view does not show
	Sentinel = "정보 없음"
)

// Field names, also the CSV header
const (
	FieldName        = "장소 이름"
	FieldCategory    = "장소 카테고리"
	FieldDescription = "장소 설명"
	FieldAddress     = "장소 주소"
	FieldAtmosphere  = "분위기"
	FieldTopics      = "인기토픽"
	FieldPurpose     = "찾는목적"
	FieldAge         = "인기연령"
	FieldGender      = "인기성별"
)

// Schema names
const (
	SchemaPlace   = "place"
	SchemaDatalab = "datalab"
)

// AgeGroups are the decades the datalab chart reports
var AgeGroups = []string{"10대", "20대", "30대", "40대", "50대", "60대"}
