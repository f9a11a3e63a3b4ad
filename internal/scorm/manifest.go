package scorm

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/shopspring/decimal"
)

// 清单解析：从 zip 里定位 imsmanifest.xml / tincan.xml，判版本、解启动文件、
// 提 mastery score；没有清单时退化为制作工具指纹 + 入口文件扫描。

const (
	manifestFileName = "imsmanifest.xml"
	tincanFileName   = "tincan.xml"
	storylineLaunch  = "story.html"
)

// launchFallbackOrder 无清单时的入口文件优先级
var launchFallbackOrder = []string{
	storylineLaunch, "index.html", "launch.html", "start.html", "main.html", "default.html",
}

// toolFingerprints 文件名中的制作工具指纹 → 版本标签
var toolFingerprints = []struct{ marker, tag string }{
	{"storyline", "storyline"},
	{"captivate", "captivate"},
	{"lectora", "lectora"},
	{"html5", "html5"},
}

// ParsedPackage 解析结果。MasteryScore 为 0–100 百分比，nil 表示清单未声明。
type ParsedPackage struct {
	Version      string
	LaunchURL    string
	Title        string
	Description  string
	MasteryScore *decimal.Decimal
	ManifestXML  string
	Files        []string
	ItemCount    int
	// Warnings 解析中的非致命问题（如 0–1 分数被按比例换算），由上层记日志
	Warnings []string
}

// ValidationError 上传期校验失败，列出全部具体问题
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid package: " + strings.Join(e.Problems, "; ")
}

// xmlNode 通用 XML 树，清单的命名空间前缀厂商间五花八门（adlcp/imsss/imscp），
// 按 local name 走树比逐一建模各 schema 可靠。
type xmlNode struct {
	XMLName  xml.Name
	Attrs    []xml.Attr `xml:",any,attr"`
	Children []xmlNode  `xml:",any"`
	Text     string     `xml:",chardata"`
}

func (n *xmlNode) attr(local string) string {
	for _, a := range n.Attrs {
		if strings.EqualFold(a.Name.Local, local) {
			return a.Value
		}
	}
	return ""
}

func (n *xmlNode) firstChild(local string) *xmlNode {
	for i := range n.Children {
		if strings.EqualFold(n.Children[i].XMLName.Local, local) {
			return &n.Children[i]
		}
	}
	return nil
}

func (n *xmlNode) findFirst(local string) *xmlNode {
	if strings.EqualFold(n.XMLName.Local, local) {
		return n
	}
	for i := range n.Children {
		if found := n.Children[i].findFirst(local); found != nil {
			return found
		}
	}
	return nil
}

func (n *xmlNode) countAll(local string) int {
	count := 0
	if strings.EqualFold(n.XMLName.Local, local) {
		count++
	}
	for i := range n.Children {
		count += n.Children[i].countAll(local)
	}
	return count
}

func (n *xmlNode) text() string {
	return strings.TrimSpace(n.Text)
}

// Parse 解析上传的 zip 包。致命错误（坏 zip、坏 XML、无可用入口）返回 error；
// 解析成功前不做任何抽取，调用方据此保证"先解析后落盘"。
func Parse(data []byte) (*ParsedPackage, error) {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open zip archive: %w", err)
	}

	var files []string
	for _, f := range reader.File {
		if f.FileInfo().IsDir() {
			continue
		}
		files = append(files, f.Name)
	}
	if len(files) == 0 {
		return nil, &ValidationError{Problems: []string{"archive contains no files"}}
	}

	// 大小写不敏感扫描，首个命中生效
	var manifestEntry, tincanEntry *zip.File
	for _, f := range reader.File {
		base := strings.ToLower(path.Base(f.Name))
		if base == manifestFileName && manifestEntry == nil {
			manifestEntry = f
		}
		if base == tincanFileName && tincanEntry == nil {
			tincanEntry = f
		}
	}

	var pkg *ParsedPackage
	switch {
	case manifestEntry != nil:
		raw, err := readZipEntry(manifestEntry)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", manifestEntry.Name, err)
		}
		pkg, err = parseIMSManifest(raw, path.Dir(manifestEntry.Name))
		if err != nil {
			return nil, err
		}
	case tincanEntry != nil:
		raw, err := readZipEntry(tincanEntry)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", tincanEntry.Name, err)
		}
		pkg, err = parseTincanManifest(raw, path.Dir(tincanEntry.Name))
		if err != nil {
			return nil, err
		}
	default:
		pkg = fingerprintPackage(files)
		if pkg.LaunchURL == "" {
			return nil, &ValidationError{Problems: []string{
				"no imsmanifest.xml or tincan.xml found",
				"no recognizable HTML entry point found",
			}}
		}
	}

	pkg.Files = files
	applyStorylineOverride(pkg, files)
	return pkg, nil
}

func readZipEntry(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// parseIMSManifest 解析 imsmanifest.xml：版本判定、组织→条目→资源链、mastery score
func parseIMSManifest(raw []byte, baseDir string) (*ParsedPackage, error) {
	var root xmlNode
	if err := xml.Unmarshal(raw, &root); err != nil {
		return nil, fmt.Errorf("parse %s: %w", manifestFileName, err)
	}

	pkg := &ParsedPackage{
		ManifestXML: string(raw),
		Version:     detectVersion(string(raw), &root),
	}

	resolveOrganization(pkg, &root)
	resolveLaunchHref(pkg, &root, baseDir)
	resolveMasteryScore(pkg, &root)
	pkg.ItemCount = root.countAll("item")

	return pkg, nil
}

// detectVersion 版本判定顺序：命名空间子串 → <schema>/<schemaversion> 文本 →
// 2004 独有的 sequencing 元素 → 默认 1.2。
func detectVersion(rawXML string, root *xmlNode) string {
	// 1.2 的命名空间 imscp_rootv1p1p2 要先于 2004 的 imscp_v1p1 检查
	if strings.Contains(rawXML, "imscp_rootv1p1p2") {
		return Version12
	}
	if strings.Contains(rawXML, "imscp_v1p1") {
		return Version2004
	}

	if schema := root.findFirst("schemaversion"); schema != nil {
		text := schema.text()
		if strings.Contains(text, "2004") || strings.Contains(text, "CAM") || strings.Contains(text, "1.3") {
			return Version2004
		}
		if strings.Contains(text, "1.2") {
			return Version12
		}
	}
	if schema := root.findFirst("schema"); schema != nil {
		if strings.Contains(schema.text(), "2004") {
			return Version2004
		}
	}

	if root.findFirst("sequencing") != nil || strings.Contains(rawXML, "imsss") {
		return Version2004
	}

	return Version12
}

func resolveOrganization(pkg *ParsedPackage, root *xmlNode) {
	orgs := root.findFirst("organizations")
	if orgs == nil {
		return
	}
	defaultID := orgs.attr("default")

	var org *xmlNode
	for i := range orgs.Children {
		child := &orgs.Children[i]
		if !strings.EqualFold(child.XMLName.Local, "organization") {
			continue
		}
		if org == nil {
			org = child
		}
		if defaultID != "" && child.attr("identifier") == defaultID {
			org = child
			break
		}
	}
	if org == nil {
		return
	}
	if title := org.firstChild("title"); title != nil {
		pkg.Title = title.text()
	}
	if desc := org.findFirst("description"); desc != nil {
		if s := desc.findFirst("string"); s != nil {
			pkg.Description = s.text()
		} else {
			pkg.Description = desc.text()
		}
	}
}

// resolveLaunchHref 默认组织下首个带 identifierref 的 item 指向的资源 href，
// 没有组织时回退为首个带 href 的资源。
func resolveLaunchHref(pkg *ParsedPackage, root *xmlNode, baseDir string) {
	resources := root.findFirst("resources")
	if resources == nil {
		pkg.Warnings = append(pkg.Warnings, "manifest has no <resources> section")
		return
	}

	resourceHref := func(identifier string) string {
		for i := range resources.Children {
			res := &resources.Children[i]
			if !strings.EqualFold(res.XMLName.Local, "resource") {
				continue
			}
			if identifier != "" && res.attr("identifier") != identifier {
				continue
			}
			if href := res.attr("href"); href != "" {
				if base := res.attr("base"); base != "" {
					href = path.Join(base, href)
				}
				return href
			}
		}
		return ""
	}

	if item := root.findFirst("item"); item != nil {
		ref := item.attr("identifierref")
		// 默认组织下首个 item 可能是纯目录节点，向下找首个有 identifierref 的
		node := item
		for ref == "" && node != nil {
			var next *xmlNode
			for i := range node.Children {
				if strings.EqualFold(node.Children[i].XMLName.Local, "item") {
					next = &node.Children[i]
					break
				}
			}
			node = next
			if node != nil {
				ref = node.attr("identifierref")
			}
		}
		if ref != "" {
			if href := resourceHref(ref); href != "" {
				pkg.LaunchURL = joinLaunchPath(baseDir, href)
				return
			}
		}
	}

	if href := resourceHref(""); href != "" {
		pkg.LaunchURL = joinLaunchPath(baseDir, href)
	}
}

// resolveMasteryScore adlcp:masteryscore（1.2）或 imsss:minNormalizedMeasure /
// completionThreshold（2004）。0–1 的小数按分数比例换算到 0–100 并记 Warning：
// 换算规则无法区分"合法的 0.5%"和"表示 50% 的 0.5"，只能换算并提示运维。
func resolveMasteryScore(pkg *ParsedPackage, root *xmlNode) {
	var node *xmlNode
	if pkg.Version == Version2004 {
		node = root.findFirst("minNormalizedMeasure")
		if node == nil {
			node = root.findFirst("completionThreshold")
		}
	} else {
		node = root.findFirst("masteryscore")
	}
	if node == nil {
		return
	}
	text := node.text()
	if text == "" {
		// completionThreshold 也可能是属性形式
		text = node.attr("minProgressMeasure")
	}
	if text == "" {
		return
	}

	score, err := decimal.NewFromString(text)
	if err != nil {
		pkg.Warnings = append(pkg.Warnings, fmt.Sprintf("unparseable mastery score %q ignored", text))
		return
	}
	if score.IsNegative() {
		pkg.Warnings = append(pkg.Warnings, fmt.Sprintf("negative mastery score %q ignored", text))
		return
	}

	if score.GreaterThan(decimal.Zero) && score.LessThanOrEqual(decimal.NewFromInt(1)) {
		rescaled := score.Mul(decimal.NewFromInt(100))
		pkg.Warnings = append(pkg.Warnings, fmt.Sprintf(
			"mastery score %s interpreted as a 0-1 fraction and rescaled to %s%%", text, rescaled))
		score = rescaled
	}
	if score.GreaterThan(decimal.NewFromInt(100)) {
		pkg.Warnings = append(pkg.Warnings, fmt.Sprintf("mastery score %s exceeds 100, ignored", text))
		return
	}
	pkg.MasteryScore = &score
}

// parseTincanManifest Tin Can/xAPI 走独立路径：<activities><activity> 的
// name/description/launch。
func parseTincanManifest(raw []byte, baseDir string) (*ParsedPackage, error) {
	var root xmlNode
	if err := xml.Unmarshal(raw, &root); err != nil {
		return nil, fmt.Errorf("parse %s: %w", tincanFileName, err)
	}

	pkg := &ParsedPackage{
		ManifestXML: string(raw),
		Version:     VersionXAPI,
	}

	activity := root.findFirst("activity")
	if activity == nil {
		return nil, &ValidationError{Problems: []string{"tincan.xml has no <activity> element"}}
	}
	if name := activity.firstChild("name"); name != nil {
		pkg.Title = name.text()
	}
	if desc := activity.firstChild("description"); desc != nil {
		pkg.Description = desc.text()
	}
	if launch := activity.firstChild("launch"); launch != nil {
		pkg.LaunchURL = joinLaunchPath(baseDir, launch.text())
	}
	if pkg.LaunchURL == "" {
		return nil, &ValidationError{Problems: []string{"tincan.xml declares no <launch> element"}}
	}

	return pkg, nil
}

// fingerprintPackage 无清单包：按文件名猜制作工具，按优先级挑 HTML 入口
func fingerprintPackage(files []string) *ParsedPackage {
	pkg := &ParsedPackage{Version: "legacy"}

	for _, f := range files {
		lower := strings.ToLower(f)
		for _, fp := range toolFingerprints {
			if strings.Contains(lower, fp.marker) {
				pkg.Version = fp.tag
				break
			}
		}
		if pkg.Version != "legacy" {
			break
		}
	}

	for _, candidate := range launchFallbackOrder {
		if match := findFileByBase(files, candidate); match != "" {
			pkg.LaunchURL = match
			return pkg
		}
	}

	// 最后的退路：任意 HTML 文件
	for _, f := range files {
		lower := strings.ToLower(f)
		if strings.HasSuffix(lower, ".html") || strings.HasSuffix(lower, ".htm") {
			pkg.LaunchURL = f
			return pkg
		}
	}

	return pkg
}

// applyStorylineOverride Storyline 的清单经常把启动文件写成 index_lms.html
// 或干脆不写；包里存在 story.html 时强制用它。这是针对单一制作工具的兼容
// 规则，不是 SCORM 通则。
func applyStorylineOverride(pkg *ParsedPackage, files []string) {
	base := strings.ToLower(path.Base(pkg.LaunchURL))
	if pkg.LaunchURL != "" && base != "index_lms.html" {
		return
	}
	if match := findFileByBase(files, storylineLaunch); match != "" {
		if pkg.LaunchURL != "" {
			pkg.Warnings = append(pkg.Warnings, fmt.Sprintf(
				"launch %q overridden to %q (Storyline compatibility rule)", pkg.LaunchURL, match))
		}
		pkg.LaunchURL = match
	}
}

// findFileByBase 大小写不敏感按基名找文件，浅层路径优先
func findFileByBase(files []string, base string) string {
	best := ""
	bestDepth := -1
	for _, f := range files {
		if !strings.EqualFold(path.Base(f), base) {
			continue
		}
		depth := strings.Count(f, "/")
		if bestDepth == -1 || depth < bestDepth {
			best = f
			bestDepth = depth
		}
	}
	return best
}

func joinLaunchPath(baseDir, href string) string {
	href = strings.TrimSpace(href)
	// 资源 href 可能带 ?参数，路径归一化要避开查询串
	query := ""
	if i := strings.IndexByte(href, '?'); i >= 0 {
		query = href[i:]
		href = href[:i]
	}
	if baseDir != "." && baseDir != "" {
		href = path.Join(baseDir, href)
	} else {
		href = path.Clean(href)
	}
	return href + query
}
