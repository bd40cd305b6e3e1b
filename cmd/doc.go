/*
Package cmd wires configuration, logging and the crawl components into the
tuoitre-crawler CLI.

	tuoitre-crawler crawl  --config crawler.yaml
	tuoitre-crawler videos --target 200
*/
package cmd
