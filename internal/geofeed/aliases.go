package geofeed

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"sipeta-bknd/internal/models"
	"sipeta-bknd/internal/names"
)

// PropertyAliases lists, per level, the GeoJSON property keys that may hold
// the region name (Name) and the enclosing region's name (Parent). Keys are
// tried in order; the first present, non-empty one wins.
type PropertyAliases struct {
	Name   map[models.Level][]string
	Parent map[models.Level][]string
}

// DefaultAliases covers the spellings seen in the BPS/PLN boundary files.
func DefaultAliases() PropertyAliases {
	return PropertyAliases{
		Name: map[models.Level][]string{
			models.LevelProvince:  {"Provinsi", "PROVINSI", "provinsi", "NAME_1"},
			models.LevelKabupaten: {"Kab_Kota", "KAB_KOTA", "kabupaten", "NAME_2"},
			models.LevelKecamatan: {"Kecamatan", "KECAMATAN", "kecamatan", "NAME_3"},
			models.LevelDesa:      {"Desa", "DESA", "desa", "NAME_4"},
			models.LevelUP3:       {"UP3", "nama_up3", "NAMA_UP3"},
			models.LevelULP:       {"ULP", "nama_ulp", "NAMA_ULP"},
		},
		Parent: map[models.Level][]string{
			models.LevelKabupaten: {"Provinsi", "PROVINSI", "NAME_1"},
			models.LevelKecamatan: {"Kab_Kota", "KAB_KOTA", "kabupaten", "NAME_2"},
			models.LevelDesa:      {"Kecamatan", "KECAMATAN", "kecamatan", "NAME_3"},
			models.LevelULP:       {"UP3", "nama_up3", "NAMA_UP3"},
		},
	}
}

// ResolveName returns the region name of a feature at level.
func (a PropertyAliases) ResolveName(level models.Level, props map[string]any) (string, bool) {
	return resolve(a.Name[level], props)
}

// ResolveParent returns the enclosing region name of a feature, if recorded.
func (a PropertyAliases) ResolveParent(level models.Level, props map[string]any) (string, bool) {
	return resolve(a.Parent[level], props)
}

func resolve(keys []string, props map[string]any) (string, bool) {
	for _, k := range keys {
		v, ok := props[k]
		if !ok || v == nil {
			continue
		}
		var s string
		switch x := v.(type) {
		case string:
			s = x
		case float64:
			s = strconv.FormatFloat(x, 'f', -1, 64)
		default:
			s = fmt.Sprint(x)
		}
		if strings.TrimSpace(s) != "" {
			return s, true
		}
	}
	return "", false
}

// AliasFile is the JSON layout of GEO_ALIAS_FILE. Listed levels replace the
// defaults; unlisted levels keep them.
//
//	{
//	  "propertyAliases": {"kabupaten": ["Kab_Kota", "KAB_KOTA", "WADMKK"]},
//	  "parentAliases":   {"desa": ["WADMKC"]},
//	  "nameAliases":     {"desa": {"Pulo Balai": "Pulau Balai"}}
//	}
type AliasFile struct {
	PropertyAliases map[string][]string          `json:"propertyAliases"`
	ParentAliases   map[string][]string          `json:"parentAliases"`
	NameAliases     map[string]map[string]string `json:"nameAliases"`
}

// LoadAliases reads an alias file. An empty path returns the defaults and
// a Canon without name aliases.
func LoadAliases(path string) (PropertyAliases, *names.Canon, error) {
	aliases := DefaultAliases()
	if path == "" {
		return aliases, names.NewCanon(nil), nil
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return aliases, nil, fmt.Errorf("read alias file: %w", err)
	}
	var f AliasFile
	if err := json.Unmarshal(b, &f); err != nil {
		return aliases, nil, fmt.Errorf("parse alias file: %w", err)
	}

	if err := mergeKeys(aliases.Name, f.PropertyAliases); err != nil {
		return aliases, nil, err
	}
	if err := mergeKeys(aliases.Parent, f.ParentAliases); err != nil {
		return aliases, nil, err
	}

	nameAliases := make(map[models.Level]map[string]string, len(f.NameAliases))
	for lv, pairs := range f.NameAliases {
		level, ok := models.ParseLevel(lv)
		if !ok {
			return aliases, nil, fmt.Errorf("alias file: unknown level %q", lv)
		}
		nameAliases[level] = pairs
	}
	return aliases, names.NewCanon(nameAliases), nil
}

func mergeKeys(dst map[models.Level][]string, src map[string][]string) error {
	for lv, keys := range src {
		level, ok := models.ParseLevel(lv)
		if !ok {
			return fmt.Errorf("alias file: unknown level %q", lv)
		}
		dst[level] = keys
	}
	return nil
}
