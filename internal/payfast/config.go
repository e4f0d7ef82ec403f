package payfast

// DefaultHostURL is the live process endpoint.
const DefaultHostURL = "https://www.payfast.co.za/eng/process"

// DefaultValidHosts are resolved to decide whether an ITN came from PayFast.
var DefaultValidHosts = []string{
	"www.payfast.co.za",
	"sandbox.payfast.co.za",
	"w1w.payfast.co.za",
	"w2w.payfast.co.za",
}

type Config struct {
	MerchantID     string   `env:"PAYFAST_MERCHANT_ID"`
	MerchantKey    string   `env:"PAYFAST_MERCHANT_KEY"`
	Passphrase     string   `env:"PAYFAST_PASSPHRASE"`
	HostURL        string   `env:"PAYFAST_HOST_URL" envDefault:"https://www.payfast.co.za/eng/process"`
	ReturnURL      string   `env:"PAYFAST_RETURN_URL"`
	CancelURL      string   `env:"PAYFAST_CANCEL_URL"`
	NotifyURL      string   `env:"PAYFAST_NOTIFY_URL"`
	ItemNamePrefix string   `env:"PAYFAST_ITEM_NAME_PREFIX" envDefault:"Order_"`
	Currency       string   `env:"PAYFAST_CURRENCY" envDefault:"ZAR"`
	ValidHosts     []string `env:"PAYFAST_VALID_HOSTS" envSeparator:"," envDefault:"www.payfast.co.za,sandbox.payfast.co.za,w1w.payfast.co.za,w2w.payfast.co.za"`
}
