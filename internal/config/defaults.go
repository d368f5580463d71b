package config

const (
	defaultDataDir               = "~/.local/share/titlevault"
	defaultLogDir                = "~/.local/share/titlevault/logs"
	defaultSeparator             = "\t"
	defaultPackageCachePath      = "~/.cache/titlevault/packages.json"
	defaultPackageTimeoutSeconds = 30
	defaultPackageUserAgent      = "titlevault/dev"
	defaultSweepFirst            = 1
	defaultSweepLast             = 1300
	defaultSweepPages            = 2
	defaultSearchLanguage        = "en-us"
	maxTitleNumber               = 99999
	defaultLogFormat             = "console"
	defaultLogLevel              = "info"
	databaseFileName             = "titlevault.db"
	unknownRegion                = "???"
)

// Row fields that accept a spreadsheet column mapping.
const (
	FieldShortID      = "short_id"
	FieldCanonicalID  = "canonical_id"
	FieldName         = "name"
	FieldAltName      = "alt_name"
	FieldPackageURL   = "package_url"
	FieldLicenseToken = "license_token"
	FieldCategory     = "category"
)

// ColumnFields lists every row field in import order. Mapping keys outside
// this list are rejected by Validate.
var ColumnFields = []string{
	FieldShortID,
	FieldCanonicalID,
	FieldName,
	FieldAltName,
	FieldPackageURL,
	FieldLicenseToken,
	FieldCategory,
}

func defaultRegions() map[string]string {
	return map[string]string{
		"PCSA": "USA",
		"PCSB": "EUR",
		"PCSC": "JPN",
		"PCSD": "ASN",
		"PCSE": "USA",
		"PCSF": "EUR",
		"PCSG": "JPN",
		"PCSH": "ASN",
	}
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	mapping := make(map[string]string, len(ColumnFields))
	for _, field := range ColumnFields {
		mapping[field] = field
	}
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		Import: Import{
			Separator: defaultSeparator,
		},
		Mapping: mapping,
		Regions: defaultRegions(),
		Sweep: Sweep{
			First:     defaultSweepFirst,
			Last:      defaultSweepLast,
			Pages:     defaultSweepPages,
			Languages: map[string]string{},
		},
		Packages: Packages{
			CachePath:      defaultPackageCachePath,
			TimeoutSeconds: defaultPackageTimeoutSeconds,
			UserAgent:      defaultPackageUserAgent,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
