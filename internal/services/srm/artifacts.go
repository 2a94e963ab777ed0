package srm

// ManifestEntry is one shortcut in a manual manifest.
type ManifestEntry struct {
	Title         string `json:"title"`
	Target        string `json:"target"`
	StartIn       string `json:"startIn"`
	LaunchOptions string `json:"launchOptions"`
}

// ParserConfig is one entry of userConfigurations.json. Field order and
// values mirror what SRM itself writes for a manual-manifest parser.
type ParserConfig struct {
	ParserType                     string            `json:"parserType"`
	ConfigTitle                    string            `json:"configTitle"`
	SteamDirectory                 string            `json:"steamDirectory"`
	SteamCategory                  string            `json:"steamCategory"`
	ROMDirectory                   string            `json:"romDirectory"`
	ExecutableArgs                 string            `json:"executableArgs"`
	ExecutableModifier             string            `json:"executableModifier"`
	StartInDirectory               string            `json:"startInDirectory"`
	TitleModifier                  string            `json:"titleModifier"`
	FetchControllerTemplatesButton *string           `json:"fetchControllerTemplatesButton"`
	RemoveControllersButton        *string           `json:"removeControllersButton"`
	ImageProviders                 []string          `json:"imageProviders"`
	OnlineImageQueries             string            `json:"onlineImageQueries"`
	ImagePool                      string            `json:"imagePool"`
	UserAccounts                   UserAccounts      `json:"userAccounts"`
	Executable                     Executable        `json:"executable"`
	ParserInputs                   ParserInputs      `json:"parserInputs"`
	TitleFromVariable              TitleFromVariable `json:"titleFromVariable"`
	FuzzyMatch                     FuzzyMatch        `json:"fuzzyMatch"`
	Controllers                    Controllers       `json:"controllers"`
	ImageProviderAPIs              ImageProviderAPIs `json:"imageProviderAPIs"`
	DefaultImage                   ImageSet          `json:"defaultImage"`
	LocalImages                    ImageSet          `json:"localImages"`
	ParserID                       string            `json:"parserId"`
	Disabled                       bool              `json:"disabled"`
	Version                        int               `json:"version"`
}

type UserAccounts struct {
	SpecifiedAccounts string `json:"specifiedAccounts"`
}

type Executable struct {
	Path                   string `json:"path"`
	ShortcutPassthrough    bool   `json:"shortcutPassthrough"`
	AppendArgsToExecutable bool   `json:"appendArgsToExecutable"`
}

type ParserInputs struct {
	ManualManifests string `json:"manualManifests"`
}

type TitleFromVariable struct {
	LimitToGroups                 string `json:"limitToGroups"`
	CaseInsensitiveVariables      bool   `json:"caseInsensitiveVariables"`
	SkipFileIfVariableWasNotFound bool   `json:"skipFileIfVariableWasNotFound"`
	TryToMatchTitle               bool   `json:"tryToMatchTitle"`
}

type FuzzyMatch struct {
	ReplaceDiacritics bool `json:"replaceDiacritics"`
	RemoveCharacters  bool `json:"removeCharacters"`
	RemoveBrackets    bool `json:"removeBrackets"`
}

type ControllerTemplate struct {
	Title       string `json:"title"`
	ProfileType string `json:"profileType"`
	MappingID   string `json:"mappingId"`
}

type Controllers struct {
	PS4               *ControllerTemplate `json:"ps4"`
	PS5               *ControllerTemplate `json:"ps5"`
	Xbox360           *ControllerTemplate `json:"xbox360"`
	XboxOne           *ControllerTemplate `json:"xboxone"`
	SwitchJoyconLeft  *ControllerTemplate `json:"switch_joycon_left"`
	SwitchJoyconRight *ControllerTemplate `json:"switch_joycon_right"`
	SwitchPro         *ControllerTemplate `json:"switch_pro"`
	Neptune           *ControllerTemplate `json:"neptune"`
}

type SteamGridDBOptions struct {
	NSFW             bool     `json:"nsfw"`
	Humor            bool     `json:"humor"`
	Styles           []string `json:"styles"`
	StylesHero       []string `json:"stylesHero"`
	StylesLogo       []string `json:"stylesLogo"`
	StylesIcon       []string `json:"stylesIcon"`
	ImageMotionTypes []string `json:"imageMotionTypes"`
}

type ImageProviderAPIs struct {
	SteamGridDB SteamGridDBOptions `json:"SteamGridDB"`
}

// ImageSet serializes every slot as null; srmsync never supplies local art.
type ImageSet struct {
	Tall *string `json:"tall"`
	Long *string `json:"long"`
	Hero *string `json:"hero"`
	Logo *string `json:"logo"`
	Icon *string `json:"icon"`
}

// UserSettings is the content of userSettings.json.
type UserSettings struct {
	FuzzyMatcher         FuzzyMatcher         `json:"fuzzyMatcher"`
	EnvironmentVariables EnvironmentVariables `json:"environmentVariables"`
	PreviewSettings      PreviewSettings      `json:"previewSettings"`
	EnabledProviders     []string             `json:"enabledProviders"`
	BatchDownloadSize    int                  `json:"batchDownloadSize"`
	Language             string               `json:"language"`
	Theme                string               `json:"theme"`
	OfflineMode          bool                 `json:"offlineMode"`
	NavigationWidth      int                  `json:"navigationWidth"`
	ClearLogOnTest       bool                 `json:"clearLogOnTest"`
	Version              int                  `json:"version"`
}

type FuzzyMatcher struct {
	Timestamps      Timestamps `json:"timestamps"`
	Verbose         bool       `json:"verbose"`
	FilterProviders bool       `json:"filterProviders"`
}

type Timestamps struct {
	Check    int64 `json:"check"`
	Download int64 `json:"download"`
}

type EnvironmentVariables struct {
	SteamDirectory       string `json:"steamDirectory"`
	UserAccounts         string `json:"userAccounts"`
	LocalImagesDirectory string `json:"localImagesDirectory"`
	ROMsDirectory        string `json:"romsDirectory"`
	RetroarchPath        string `json:"retroarchPath"`
	RACoresDirectory     string `json:"raCoresDirectory"`
}

type PreviewSettings struct {
	RetrieveCurrentSteamImages bool `json:"retrieveCurrentSteamImages"`
	DeleteDisabledShortcuts    bool `json:"deleteDisabledShortcuts"`
	ImageZoomPercentage        int  `json:"imageZoomPercentage"`
	Preload                    bool `json:"preload"`
}

const (
	parserConfigVersion = 15
	userSettingsVersion = 6
	imageProvider       = "SteamGridDB"
)

// ParserID returns the stable SRM parser identifier for a library key.
func ParserID(libraryKey string) string {
	return "srmsync-" + libraryKey
}

func gamepad(name string) *ControllerTemplate {
	return &ControllerTemplate{
		Title:       "Gamepad",
		ProfileType: "template",
		MappingID:   "controller_" + name + "_gamepad_joystick.vdf",
	}
}

// NewParserConfig builds the manual-manifest parser for one library whose
// manifest lives in manifestDir.
func NewParserConfig(libraryKey, libraryName, manifestDir string) ParserConfig {
	return ParserConfig{
		ParserType:         "Manual",
		ConfigTitle:        "Playnite - " + libraryName,
		SteamDirectory:     "${steamDirGlobal}",
		SteamCategory:      "${" + libraryName + "}",
		ExecutableModifier: `"${exePath}"`,
		TitleModifier:      "${fuzzyTitle}",
		ImageProviders:     []string{imageProvider},
		OnlineImageQueries: "${${fuzzyTitle}}",
		ImagePool:          "${fuzzyTitle}",
		UserAccounts:       UserAccounts{SpecifiedAccounts: "${${accountsglobal}}"},
		Executable:         Executable{AppendArgsToExecutable: true},
		ParserInputs:       ParserInputs{ManualManifests: manifestDir},
		FuzzyMatch:         FuzzyMatch{ReplaceDiacritics: true, RemoveCharacters: true, RemoveBrackets: true},
		Controllers: Controllers{
			PS4:               gamepad("ps4"),
			PS5:               gamepad("ps5"),
			Xbox360:           gamepad("xbox360"),
			XboxOne:           gamepad("xboxone"),
			SwitchJoyconLeft:  gamepad("switch_joycon_left"),
			SwitchJoyconRight: gamepad("switch_joycon_right"),
			SwitchPro:         gamepad("switch_pro"),
			Neptune:           gamepad("neptune"),
		},
		ImageProviderAPIs: ImageProviderAPIs{SteamGridDB: SteamGridDBOptions{
			Styles:           []string{"alternate", "blurred", "white_logo", "material"},
			StylesHero:       []string{"blurred", "alternate", "material"},
			StylesLogo:       []string{"official", "white", "black"},
			StylesIcon:       []string{"official", "custom"},
			ImageMotionTypes: []string{"static"},
		}},
		ParserID: ParserID(libraryKey),
		Version:  parserConfigVersion,
	}
}

// NewUserSettings builds SRM's global settings for the given Steam install
// and account.
func NewUserSettings(steamDir, steamUser string) UserSettings {
	return UserSettings{
		FuzzyMatcher: FuzzyMatcher{FilterProviders: true},
		EnvironmentVariables: EnvironmentVariables{
			SteamDirectory: steamDir,
			UserAccounts:   "${" + steamUser + "}",
		},
		PreviewSettings: PreviewSettings{
			RetrieveCurrentSteamImages: true,
			DeleteDisabledShortcuts:    true,
			ImageZoomPercentage:        30,
		},
		EnabledProviders:  []string{imageProvider},
		BatchDownloadSize: 50,
		Language:          "en-US",
		Theme:             "Deck",
		NavigationWidth:   311,
		ClearLogOnTest:    true,
		Version:           userSettingsVersion,
	}
}
