// Callisto translates URLs between their canonical and proxied forms for
// library proxies such as EZproxy, decides when an intercepted request should
// be redirected through a known proxy, and learns new proxies from traffic.
//
// Usage:
//
//	# Start the API server with the default configuration
//	callisto run
//
//	# Start with a configuration file
//	callisto run --config /etc/callisto/config.yaml
//
//	# Check the configuration and every stored template
//	callisto validate
//
//	# Convert a URL through the stored proxies
//	callisto convert proxied http://journal.example.org/article/9
//
//	# Manage the proxy list
//	callisto proxies list --output json
//	callisto proxies add --template 'https://%h.ezproxy.example.edu/%p' --multi-host --host journal.example.org
//	callisto proxies edit 0 --host journal.example.org --host books.example.org
//	callisto proxies remove 0
package main

func main() {
	Execute()
}
