package config

// DevProfile returns a starter configuration for local development:
// loopback listener, text logs at debug level, no rate limiting.
func DevProfile() string {
	return `# passage configuration (development profile)

listen:
  host: 127.0.0.1
  port: 8080
  max_connections: 1000

upstream:
  # Where requests are forwarded. The TARGET_URL environment
  # variable overrides this value.
  target_url: http://localhost:9000
  # Request headers copied through to the upstream. Leave unset to
  # use the built-in allow-list.
  # allowed_headers: [authorization, content-type, accept]
  # Extra headers attached to every proxied response.
  # custom_headers:
  #   X-Served-By: passage
  debug: true

rate_limit:
  enabled: false

logging:
  level: debug
  format: text
  output: stdout

shutdown:
  timeout: 10s

reload:
  enabled: false
`
}

// ProdProfile returns a hardened configuration for production:
// rate limiting on, JSON logs, hot reload, sampled audit trail.
func ProdProfile() string {
	return `# passage configuration (production profile)

listen:
  host: 0.0.0.0
  port: 8080
  max_connections: 5000
  # Requests per minute across all clients. 0 disables the cap.
  global_rate_limit: 6000
  # Load balancers allowed to set X-Forwarded-For.
  trusted_proxies:
    - 10.0.0.0/8
  # tls:
  #   cert_file: /etc/passage/tls/cert.pem
  #   key_file: /etc/passage/tls/key.pem

upstream:
  target_url: http://localhost:9000
  probe:
    enabled: true
    interval: 30s
    timeout: 5s
    path: /

rate_limit:
  enabled: true
  per_ip: 200
  burst: 50
  cleanup_interval: 5m

logging:
  level: info
  format: json
  output: stdout
  audit:
    # Fraction of successful requests recorded. Errors follow
    # error_sampling_rate and default to full coverage.
    sampling_rate: 0.1
    error_sampling_rate: 1.0

shutdown:
  timeout: 30s

reload:
  enabled: true
  watch_file: true
  debounce: 2s
`
}
