package config

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

type Config struct {
	ListenAddr string `yaml:"listen_addr"`

	StoreLoginURL  string `yaml:"store_login_url"`
	ProductBaseURL string `yaml:"product_base_url"`

	BrowserProfilePath string `yaml:"browser_profile_path"`
	Headless           bool   `yaml:"headless"`
	ViewportWidth      int    `yaml:"viewport_width"`
	ViewportHeight     int    `yaml:"viewport_height"`

	PageLoadTimeoutSec int `yaml:"page_load_timeout"`
	ElementTimeoutSec  int `yaml:"element_timeout"`
	PollIntervalMs     int `yaml:"poll_interval_ms"`

	StockRetryTimeoutSec int `yaml:"stock_retry_timeout"`
	StockRetryIntervalMs int `yaml:"stock_retry_interval_ms"`

	ScheduleTickMs int `yaml:"schedule_tick_ms"`

	TimeSyncEnabled bool     `yaml:"time_sync_enabled"`
	TimeSyncServers []string `yaml:"time_sync_servers"`

	DryRun    bool `yaml:"dry_run"`
	DebugMode bool `yaml:"debug_mode"`

	Selectors SelectorConfig `yaml:"selectors"`
}

// SelectorConfig holds the vendor site's DOM hooks. The page structure is an
// unstable external interface, so every selector is configuration data.
type SelectorConfig struct {
	LoginEmailInput    string `yaml:"login_email_input"`
	LoginPasswordInput string `yaml:"login_password_input"`
	LoginButton        string `yaml:"login_button"`
	LogoutLink         string `yaml:"logout_link"`
	LoginErrorNotice   string `yaml:"login_error_notice"`

	ColorList       string `yaml:"color_list"`
	ColorBlockXPath string `yaml:"color_block_xpath"`
	SizeRowXPath    string `yaml:"size_row_xpath"`
	StockStatus     string `yaml:"stock_status"`
	AddToBagButton  string `yaml:"add_to_bag_button"`
	UnavailableText string `yaml:"unavailable_text"`
	SoldOutText     string `yaml:"sold_out_text"`

	ProceedPaymentButton  string `yaml:"proceed_payment_button"`
	DeliveryAddressItem   string `yaml:"delivery_address_item"`
	ProceedCheckoutButton string `yaml:"proceed_checkout_button"`

	PaypalButton        string `yaml:"paypal_button"`
	PaypalEmailInput    string `yaml:"paypal_email_input"`
	PaypalNextButton    string `yaml:"paypal_next_button"`
	PaypalPasswordInput string `yaml:"paypal_password_input"`
	PaypalLoginButton   string `yaml:"paypal_login_button"`
	CardOptionButton    string `yaml:"card_option_button"`
	CardNumberInput     string `yaml:"card_number_input"`
	CardExpiryInput     string `yaml:"card_expiry_input"`
	CardCvvInput        string `yaml:"card_cvv_input"`
	CardFirstNameInput  string `yaml:"card_first_name_input"`
	CardLastNameInput   string `yaml:"card_last_name_input"`
	CardAddressInput    string `yaml:"card_address_input"`
	CardCityInput       string `yaml:"card_city_input"`
	CardStateInput      string `yaml:"card_state_input"`
	CardZipInput        string `yaml:"card_zip_input"`
	CardPhoneInput      string `yaml:"card_phone_input"`
	PaymentErrorNotice  string `yaml:"payment_error_notice"`

	PayNowButton          string `yaml:"pay_now_button"`
	ConfirmationIndicator string `yaml:"confirmation_indicator"`
	SubmissionErrorNotice string `yaml:"submission_error_notice"`
}

func DefaultConfig() *Config {
	return &Config{
		ListenAddr:     "127.0.0.1:8754",
		StoreLoginURL:  "https://shop.visvim.tv/hk/en/shop/customer/menu.aspx",
		ProductBaseURL: "https://shop.visvim.tv/hk/en/shop/g/g",

		BrowserProfilePath: filepath.Join(userDataDir(), "browser-profile"),
		Headless:           false,
		ViewportWidth:      1920,
		ViewportHeight:     1080,

		PageLoadTimeoutSec: 30,
		ElementTimeoutSec:  10,
		PollIntervalMs:     250,

		StockRetryTimeoutSec: 60,
		StockRetryIntervalMs: 2000,

		ScheduleTickMs: 1000,

		TimeSyncEnabled: true,
		TimeSyncServers: []string{
			"https://www.google.com",
			"https://www.cloudflare.com",
		},

		DryRun:    false,
		DebugMode: false,

		Selectors: SelectorConfig{
			LoginEmailInput:    "#login_uid",
			LoginPasswordInput: "#login_pwd",
			LoginButton:        ".btn.btn-primary.block-login--login",
			LogoutLink:         "a[href*='logout']",
			LoginErrorNotice:   ".block-login--error",

			ColorList:       ".carousel-link-item",
			ColorBlockXPath: `//table[contains(@class, 'detail-shoppingbag-list-color')]//span[text()='%s']/ancestor::table`,
			SizeRowXPath:    `.//td[text()='%s']/parent::tr`,
			StockStatus:     ".detail-shoppingbag-list-size-stock",
			AddToBagButton:  ".block-variation-add-cart--btn",
			UnavailableText: "is no longer available.",
			SoldOutText:     "Sold Out",

			ProceedPaymentButton:  ".btn.btn-primary.block-cart--order-btn",
			DeliveryAddressItem:   ".block-order-method--dest-item.js-sender-item input",
			ProceedCheckoutButton: ".btn.btn-primary.block-order-method--next-btn",

			PaypalButton:        ".paypal-button",
			PaypalEmailInput:    "#email",
			PaypalNextButton:    "#btnNext",
			PaypalPasswordInput: "#password",
			PaypalLoginButton:   "#btnLogin",
			CardOptionButton:    "#createAccountButton",
			CardNumberInput:     "#cardNumber",
			CardExpiryInput:     "#cardExpiry",
			CardCvvInput:        "#cardCvv",
			CardFirstNameInput:  "#firstName",
			CardLastNameInput:   "#lastName",
			CardAddressInput:    "#billingLine1",
			CardCityInput:       "input[name='billingCity']",
			CardStateInput:      "#billingState",
			CardZipInput:        "#billingPostalCode",
			CardPhoneInput:      "#phone",
			PaymentErrorNotice:  ".notification-critical",

			PayNowButton:          "#payment-submit-btn",
			ConfirmationIndicator: ".block-order-complete",
			SubmissionErrorNotice: ".block-order--error",
		},
	}
}

func LoadConfig(path string) (*Config, error) {
	config := DefaultConfig()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := config.Save(path); err != nil {
			return nil, err
		}
		return config, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, err
	}

	if config.BrowserProfilePath != "" {
		if err := os.MkdirAll(config.BrowserProfilePath, 0755); err != nil {
			return nil, err
		}
	}

	return config, nil
}

func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

func userDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./snapcart-data"
	}
	return filepath.Join(home, ".snapcart")
}
