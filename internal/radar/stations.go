package radar

// DefaultStations is the built-in station table: WSR-88D sites covering the
// mid-Atlantic and northeastern US.
func DefaultStations() []StationConfig {
	return []StationConfig{
		{ID: "KLWX", Lat: 38.97611237, Lon: -77.48750305, Bounds: BoundingBox{34.84664293135119, 43.10558009613012, -82.80239033783172, -72.17260865799442}},
		{ID: "KCCX", Lat: 40.92316818, Lon: -78.00372314, Bounds: BoundingBox{36.7934961034473, 45.052827879608266, -83.47281512714993, -72.53464276292041}},
		{ID: "KJKL", Lat: 37.59083176, Lon: -83.31305695, Bounds: BoundingBox{33.46135540824945, 41.72030030972457, -88.52720127885047, -78.09891722192692}},
		{ID: "KENX", Lat: 42.58655548, Lon: -74.06408691, Bounds: BoundingBox{38.457080718757574, 46.71602144898151, -79.67698036449032, -68.45119092906985}},
		{ID: "KBGM", Lat: 42.19969559, Lon: -75.98472595, Bounds: BoundingBox{38.07022598117396, 46.329154213920454, -81.5630192883354, -70.40643144099836}},
		{ID: "KTYX", Lat: 43.75569534, Lon: -75.67986298, Bounds: BoundingBox{39.62602639385995, 47.885361249069334, -81.4018462239696, -69.95786833537181}},
		{ID: "KCXX", Lat: 44.51100159, Lon: -73.16642761, Bounds: BoundingBox{40.381133240418805, 48.64086714911371, -78.962610989264, -67.37025417510782}},
		{ID: "KBUF", Lat: 42.94878769, Lon: -78.73677826, Bounds: BoundingBox{38.8185378506761, 47.07903820864557, -84.38376230288945, -73.08978881930115}},
		{ID: "KOKX", Lat: 40.86552811, Lon: -72.86391449, Bounds: BoundingBox{36.73585731888025, 44.99519571758983, -78.32822702710388, -67.39961517721764}},
		{ID: "KFCX", Lat: 37.0243988, Lon: -80.27397156, Bounds: BoundingBox{32.894726263234276, 41.15426188081905, -85.44936594328767, -75.09859179072811}},
	}
}

// SelectStations returns the stations of table whose IDs appear in ids,
// in the order of ids. Unknown IDs are reported back.
func SelectStations(table []StationConfig, ids []string) (selected []StationConfig, unknown []string) {
	byID := make(map[string]StationConfig, len(table))
	for _, st := range table {
		byID[st.ID] = st
	}
	for _, id := range ids {
		st, ok := byID[id]
		if !ok {
			unknown = append(unknown, id)
			continue
		}
		selected = append(selected, st)
	}
	return selected, unknown
}
