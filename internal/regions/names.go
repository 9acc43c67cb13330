package regions

// Region is a static entry of the national region table.
type Region struct {
	Code   string `json:"code" doc:"Region SOATO code" example:"1726"`
	ISO    string `json:"iso" doc:"ISO 3166-2 key used by the boundary layer" example:"UZ-TK"`
	NameUz string `json:"nameUz" doc:"Name in uz-Latn"`
	NameRu string `json:"nameRu" doc:"Name in ru"`
}

// Table lists the regions of Uzbekistan.
var Table = []Region{
	{"1703", "UZ-AN", "Andijon viloyati", "Андижанская область"},
	{"1706", "UZ-BU", "Buxoro viloyati", "Бухарская область"},
	{"1708", "UZ-JI", "Jizzax viloyati", "Джизакская область"},
	{"1710", "UZ-QA", "Qashqadaryo viloyati", "Кашкадарьинская область"},
	{"1712", "UZ-NW", "Navoiy viloyati", "Навоийская область"},
	{"1714", "UZ-NG", "Namangan viloyati", "Наманганская область"},
	{"1718", "UZ-SA", "Samarqand viloyati", "Самаркандская область"},
	{"1722", "UZ-SU", "Surxondaryo viloyati", "Сурхандарьинская область"},
	{"1724", "UZ-SI", "Sirdaryo viloyati", "Сырдарьинская область"},
	{"1726", "UZ-TK", "Toshkent shahri", "город Ташкент"},
	{"1727", "UZ-TO", "Toshkent viloyati", "Ташкентская область"},
	{"1730", "UZ-FA", "Farg'ona viloyati", "Ферганская область"},
	{"1733", "UZ-XO", "Xorazm viloyati", "Хорезмская область"},
	{"1735", "UZ-QR", "Qoraqalpog'iston Respublikasi", "Республика Каракалпакстан"},
}

// LookupRegion finds a region of the table by SOATO code.
func LookupRegion(code string) (Region, bool) {
	for _, r := range Table {
		if r.Code == code {
			return r, true
		}
	}
	return Region{}, false
}
