package useragent

import (
	"fmt"
	"os"
	"regexp"
	"sync"

	"github.com/ua-parser/uap-go/uaparser"
	"go.uber.org/zap"
)

// DeviceType is the coarse client class recorded on every click.
type DeviceType string

const (
	DeviceDesktop DeviceType = "Desktop"
	DeviceMobile  DeviceType = "Mobile"
	DeviceTablet  DeviceType = "Tablet"
	DeviceBot     DeviceType = "Bot"
	DeviceUnknown DeviceType = "Unknown"
)

var (
	mobilePattern = regexp.MustCompile(`(?i)mobile`)
	tabletPattern = regexp.MustCompile(`(?i)tablet`)
	botPattern    = regexp.MustCompile(`(?i)bot|spider|crawl|slurp`)
)

// Classify maps a User-Agent to a DeviceType. The first matching rule wins:
// mobile, tablet, bot, then desktop for any other non-empty agent.
func Classify(userAgent string) DeviceType {
	switch {
	case userAgent == "":
		return DeviceUnknown
	case mobilePattern.MatchString(userAgent):
		return DeviceMobile
	case tabletPattern.MatchString(userAgent):
		return DeviceTablet
	case botPattern.MatchString(userAgent):
		return DeviceBot
	default:
		return DeviceDesktop
	}
}

// DeviceInfo represents parsed client information
type DeviceInfo struct {
	DeviceType DeviceType
	Browser    string // Chrome, Firefox, Safari, etc.
	OS         string // Windows, iOS, Android, etc.
}

// Parser wraps the ua-parser regex set for browser and OS detection.
type Parser struct {
	parser *uaparser.Parser
	log    *zap.Logger
}

var (
	globalParser *Parser
	once         sync.Once
)

// NewParser creates a parser from a regexes.yaml file.
func NewParser(regexFilePath string, log *zap.Logger) (*Parser, error) {
	regexBytes, err := os.ReadFile(regexFilePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read regexes file %s: %w", regexFilePath, err)
	}

	parser, err := uaparser.NewFromBytes(regexBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to create User-Agent parser: %w", err)
	}

	log.Info("User-Agent parser initialized", zap.String("regexes_file", regexFilePath))
	return &Parser{parser: parser, log: log}, nil
}

// NewBuiltinParser creates a parser from the regex set bundled with uap-go.
func NewBuiltinParser(log *zap.Logger) *Parser {
	return &Parser{parser: uaparser.NewFromSaved(), log: log}
}

// InitGlobalParser initializes the shared parser. When the regexes file cannot
// be loaded the bundled definitions are used and the load error is returned.
func InitGlobalParser(regexFilePath string, log *zap.Logger) error {
	var err error
	once.Do(func() {
		globalParser, err = NewParser(regexFilePath, log)
		if err != nil {
			globalParser = NewBuiltinParser(log)
		}
	})
	return err
}

// GetGlobalParser returns the shared parser, or nil before InitGlobalParser.
func GetGlobalParser() *Parser {
	return globalParser
}

// Parse classifies the agent and extracts browser and OS families.
// A nil Parser still classifies the device.
func (p *Parser) Parse(userAgent string) DeviceInfo {
	info := DeviceInfo{
		DeviceType: Classify(userAgent),
		Browser:    "unknown",
		OS:         "unknown",
	}
	if p == nil || p.parser == nil || userAgent == "" {
		return info
	}

	client := p.parser.Parse(userAgent)
	info.Browser = formatFamily(client.UserAgent.Family)
	info.OS = formatFamily(client.Os.Family)

	p.log.Debug("parsed User-Agent",
		zap.String("device_type", string(info.DeviceType)),
		zap.String("browser", info.Browser),
		zap.String("os", info.OS),
	)

	return info
}

// formatFamily replaces empty and catch-all families with "unknown"
func formatFamily(s string) string {
	if s == "" || s == "Other" {
		return "unknown"
	}
	return s
}
