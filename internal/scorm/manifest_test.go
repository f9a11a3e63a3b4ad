package scorm

import (
	"archive/zip"
	"bytes"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

func buildZip(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, content := range files {
		f, err := w.Create(name)
		if err != nil {
			t.Fatalf("create zip entry %s: %v", name, err)
		}
		if _, err := f.Write([]byte(content)); err != nil {
			t.Fatalf("write zip entry %s: %v", name, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	return buf.Bytes()
}

const manifest12 = `<?xml version="1.0"?>
<manifest identifier="com.example.course" version="1.1"
    xmlns="http://www.imsproject.org/xsd/imscp_rootv1p1p2"
    xmlns:adlcp="http://www.adlnet.org/xsd/adlcp_rootv1p2">
  <metadata>
    <schema>ADL SCORM</schema>
    <schemaversion>1.2</schemaversion>
  </metadata>
  <organizations default="ORG-1">
    <organization identifier="ORG-1">
      <title>Workplace Safety Basics</title>
      <item identifier="ITEM-1" identifierref="RES-1">
        <title>Module 1</title>
        <adlcp:masteryscore>0.8</adlcp:masteryscore>
      </item>
      <item identifier="ITEM-2" identifierref="RES-1"><title>Module 2</title></item>
    </organization>
  </organizations>
  <resources>
    <resource identifier="RES-1" type="webcontent" adlcp:scormtype="sco" href="index.html">
      <file href="index.html"/>
    </resource>
  </resources>
</manifest>`

const manifest2004 = `<?xml version="1.0"?>
<manifest identifier="com.example.course2004" version="1"
    xmlns="http://www.imsglobal.org/xsd/imscp_v1p1"
    xmlns:adlcp="http://www.adlnet.org/xsd/adlcp_v1p3"
    xmlns:imsss="http://www.imsglobal.org/xsd/imsss">
  <metadata>
    <schema>ADL SCORM</schema>
    <schemaversion>2004 3rd Edition</schemaversion>
  </metadata>
  <organizations default="ORG-1">
    <organization identifier="ORG-1">
      <title>Compliance 2004</title>
      <item identifier="ITEM-1" identifierref="RES-1">
        <title>SCO 1</title>
        <imsss:sequencing>
          <imsss:objectives>
            <imsss:primaryObjective satisfiedByMeasure="true">
              <imsss:minNormalizedMeasure>0.75</imsss:minNormalizedMeasure>
            </imsss:primaryObjective>
          </imsss:objectives>
        </imsss:sequencing>
      </item>
    </organization>
  </organizations>
  <resources>
    <resource identifier="RES-1" type="webcontent" adlcp:scormType="sco" href="launch.html"/>
  </resources>
</manifest>`

// 规范性质：合法 1.2 包判为 "1.2"
func TestParse_SCORM12(t *testing.T) {
	data := buildZip(t, map[string]string{
		"imsmanifest.xml": manifest12,
		"index.html":      "<html></html>",
	})

	pkg, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if pkg.Version != Version12 {
		t.Errorf("version = %q, want 1.2", pkg.Version)
	}
	if pkg.LaunchURL != "index.html" {
		t.Errorf("launch = %q, want index.html", pkg.LaunchURL)
	}
	if pkg.Title != "Workplace Safety Basics" {
		t.Errorf("title = %q", pkg.Title)
	}
	if pkg.ItemCount != 2 {
		t.Errorf("itemCount = %d, want 2", pkg.ItemCount)
	}
}

// 规范性质（端到端）：adlcp:masteryscore 0.8 换算为 80
func TestParse_MasteryScoreRescaled(t *testing.T) {
	data := buildZip(t, map[string]string{
		"imsmanifest.xml": manifest12,
		"index.html":      "<html></html>",
	})

	pkg, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if pkg.MasteryScore == nil {
		t.Fatal("masteryScore = nil, want 80")
	}
	if !pkg.MasteryScore.Equal(mustDecimal(t, "80")) {
		t.Errorf("masteryScore = %s, want 80", pkg.MasteryScore)
	}
	// 换算必须留痕
	found := false
	for _, w := range pkg.Warnings {
		if strings.Contains(w, "rescaled") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a rescale warning, got %v", pkg.Warnings)
	}
}

// 规范性质：带 imsss/sequencing 的包判为 "2004"
func TestParse_SCORM2004(t *testing.T) {
	data := buildZip(t, map[string]string{
		"imsmanifest.xml": manifest2004,
		"launch.html":     "<html></html>",
	})

	pkg, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if pkg.Version != Version2004 {
		t.Errorf("version = %q, want 2004", pkg.Version)
	}
	if pkg.LaunchURL != "launch.html" {
		t.Errorf("launch = %q, want launch.html", pkg.LaunchURL)
	}
	if pkg.MasteryScore == nil || !pkg.MasteryScore.Equal(mustDecimal(t, "75")) {
		t.Errorf("masteryScore = %v, want 75", pkg.MasteryScore)
	}
}

func TestDetectVersion_NamespaceBeatsSchema(t *testing.T) {
	if v := detectVersion("...imscp_rootv1p1p2...", &xmlNode{}); v != Version12 {
		t.Errorf("rootv1p1p2 namespace = %q, want 1.2", v)
	}
	if v := detectVersion("...imscp_v1p1...", &xmlNode{}); v != Version2004 {
		t.Errorf("imscp_v1p1 namespace = %q, want 2004", v)
	}
	if v := detectVersion("no signals at all", &xmlNode{}); v != Version12 {
		t.Errorf("default version = %q, want 1.2", v)
	}
}

// 清单在子目录中：launch 路径以清单目录为基准
func TestParse_ManifestInSubdirectory(t *testing.T) {
	data := buildZip(t, map[string]string{
		"course/imsmanifest.xml": manifest12,
		"course/index.html":      "<html></html>",
	})

	pkg, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if pkg.LaunchURL != "course/index.html" {
		t.Errorf("launch = %q, want course/index.html", pkg.LaunchURL)
	}
}

// 规范性质（端到端）：无清单但同时有 story.html 和 index.html 时优先 story.html
func TestParse_NoManifestStorylinePriority(t *testing.T) {
	data := buildZip(t, map[string]string{
		"story.html":         "<html></html>",
		"index.html":         "<html></html>",
		"html5/data/main.js": "//",
	})

	pkg, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if pkg.LaunchURL != "story.html" {
		t.Errorf("launch = %q, want story.html", pkg.LaunchURL)
	}
}

// Storyline 兼容规则：清单声明 index_lms.html 但包里有 story.html 时覆盖
func TestParse_IndexLMSOverriddenByStory(t *testing.T) {
	manifest := strings.Replace(manifest12, `href="index.html"`, `href="index_lms.html"`, 1)
	data := buildZip(t, map[string]string{
		"imsmanifest.xml": manifest,
		"index_lms.html":  "<html></html>",
		"story.html":      "<html></html>",
	})

	pkg, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if pkg.LaunchURL != "story.html" {
		t.Errorf("launch = %q, want story.html", pkg.LaunchURL)
	}
}

func TestParse_Tincan(t *testing.T) {
	tincan := `<?xml version="1.0"?>
<tincan xmlns="http://projecttincan.com/tincan.xsd">
  <activities>
    <activity id="http://example.com/course" type="http://adlnet.gov/expapi/activities/course">
      <name>xAPI Sample</name>
      <description lang="en-US">A tin can course</description>
      <launch lang="en-us">index_lms.html</launch>
    </activity>
  </activities>
</tincan>`
	data := buildZip(t, map[string]string{
		"tincan.xml":     tincan,
		"index_lms.html": "<html></html>",
	})

	pkg, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if pkg.Version != VersionXAPI {
		t.Errorf("version = %q, want xapi", pkg.Version)
	}
	if pkg.Title != "xAPI Sample" {
		t.Errorf("title = %q", pkg.Title)
	}
	if pkg.LaunchURL != "index_lms.html" {
		t.Errorf("launch = %q, want index_lms.html", pkg.LaunchURL)
	}
}

func TestParse_MalformedManifestFatal(t *testing.T) {
	data := buildZip(t, map[string]string{
		"imsmanifest.xml": "<manifest><unclosed>",
		"index.html":      "<html></html>",
	})

	if _, err := Parse(data); err == nil {
		t.Fatal("expected parse error for malformed XML")
	}
}

func TestParse_NotAZip(t *testing.T) {
	if _, err := Parse([]byte("this is not a zip")); err == nil {
		t.Fatal("expected error for non-zip input")
	}
}

func TestParse_NoEntryPoint(t *testing.T) {
	data := buildZip(t, map[string]string{"data/course.bin": "xx"})

	_, err := Parse(data)
	if err == nil {
		t.Fatal("expected validation error")
	}
	if _, ok := err.(*ValidationError); !ok {
		t.Errorf("error type = %T, want *ValidationError", err)
	}
}

func TestFingerprint_ToolTag(t *testing.T) {
	data := buildZip(t, map[string]string{
		"story.html":               "<html></html>",
		"mobile/storyline_data.js": "//",
	})

	pkg, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if pkg.Version != "storyline" {
		t.Errorf("version = %q, want storyline", pkg.Version)
	}
}

func mustDecimal(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("bad decimal literal %q: %v", s, err)
	}
	return d
}
